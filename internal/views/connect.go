package views

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"go.uber.org/zap"

	"ethterm/internal/chain"
	"ethterm/internal/config"
	"ethterm/internal/session"
	"ethterm/internal/utils"
	"ethterm/internal/wallet"
)

type connectMode int

const (
	modePick connectMode = iota
	modeUnlock
	modeImportMnemonic
	modeImportKey
	modeWatch
)

// Fixed entries appended below the stored keys in the picker.
var connectActions = []string{
	"Import mnemonic",
	"Import private key",
	"Watch an address",
}

type ConnectModel struct {
	cfg      *config.Config
	network  config.Network
	keystore *wallet.Keystore
	sessions *session.Manager
	log      *zap.Logger

	mode     connectMode
	keys     []wallet.KeyFile
	selected int
	loading  bool
	errMsg   string

	// Unlock form
	unlockKey wallet.KeyFile
	password  textinput.Model

	// Import forms share label/secret/password; secret holds either the
	// mnemonic or the hex key depending on mode.
	label  textinput.Model
	secret textinput.Model
	focus  int

	// Watch form
	address textinput.Model
}

func NewConnectModel(cfg *config.Config, network config.Network, keystore *wallet.Keystore, sessions *session.Manager, log *zap.Logger) *ConnectModel {
	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.CharLimit = 128

	label := textinput.New()
	label.Placeholder = "label"
	label.CharLimit = 64

	secret := textinput.New()
	secret.CharLimit = 512

	address := textinput.New()
	address.Placeholder = "0x..."
	address.CharLimit = 42

	keys, err := keystore.List()
	if err != nil {
		log.Warn("failed to list stored keys", zap.Error(err))
	}

	// Pre-select the key from the last session so reconnecting is one
	// keypress.
	selected := 0
	if last := sessions.LastConnected(); last != nil {
		for i, key := range keys {
			if strings.EqualFold(key.Address, last.Address) {
				selected = i
				break
			}
		}
		if n, ok := cfg.NetworkByChainID(last.ChainID); ok {
			network = n
		}
	}

	return &ConnectModel{
		cfg:      cfg,
		network:  network,
		keystore: keystore,
		sessions: sessions,
		log:      log,
		keys:     keys,
		selected: selected,
		password: password,
		label:    label,
		secret:   secret,
		address:  address,
	}
}

func (m ConnectModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m ConnectModel) Update(msg tea.Msg) (ConnectModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.loading {
			return m, nil
		}
		switch m.mode {
		case modePick:
			return m.updatePick(msg)
		case modeUnlock:
			return m.updateUnlock(msg)
		case modeImportMnemonic, modeImportKey:
			return m.updateImport(msg)
		case modeWatch:
			return m.updateWatch(msg)
		}

	case ErrorMsg:
		m.loading = false
		if msg.Err != nil {
			m.errMsg = msg.Err.Error()
		}
	}

	return m, nil
}

func (m ConnectModel) updatePick(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	total := len(m.keys) + len(connectActions)

	switch msg.String() {
	case "up", "k":
		if m.selected > 0 {
			m.selected--
		}
	case "down", "j":
		if m.selected < total-1 {
			m.selected++
		}
	case "n":
		m.network = m.nextNetwork()
	case "x":
		if m.selected < len(m.keys) {
			return m.deleteSelectedKey()
		}
	case "q":
		return m, tea.Quit
	case "enter":
		m.errMsg = ""
		if m.selected < len(m.keys) {
			m.unlockKey = m.keys[m.selected]
			m.mode = modeUnlock
			m.password.SetValue("")
			m.password.Focus()
			return m, textinput.Blink
		}
		switch m.selected - len(m.keys) {
		case 0:
			m.mode = modeImportMnemonic
			m.secret.Placeholder = "mnemonic words"
			m.secret.EchoMode = textinput.EchoNormal
		case 1:
			m.mode = modeImportKey
			m.secret.Placeholder = "hex private key"
			m.secret.EchoMode = textinput.EchoPassword
		case 2:
			m.mode = modeWatch
			m.address.SetValue("")
			m.address.Focus()
			return m, textinput.Blink
		}
		m.label.SetValue("")
		m.secret.SetValue("")
		m.password.SetValue("")
		m.focus = 0
		m.label.Focus()
		m.secret.Blur()
		m.password.Blur()
		return m, textinput.Blink
	}

	return m, nil
}

func (m ConnectModel) deleteSelectedKey() (ConnectModel, tea.Cmd) {
	key := m.keys[m.selected]
	if err := m.keystore.Delete(key.Address); err != nil {
		m.errMsg = err.Error()
		return m, nil
	}

	keys, err := m.keystore.List()
	if err != nil {
		m.log.Warn("failed to list stored keys", zap.Error(err))
	}
	m.keys = keys
	if m.selected >= len(m.keys)+len(connectActions) {
		m.selected = len(m.keys) + len(connectActions) - 1
	}
	m.errMsg = ""
	return m, nil
}

func (m ConnectModel) updateUnlock(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modePick
		m.errMsg = ""
		return m, nil
	case "enter":
		m.loading = true
		m.errMsg = ""
		return m, m.unlockCmd(m.unlockKey.Address, m.password.Value())
	}

	var cmd tea.Cmd
	m.password, cmd = m.password.Update(msg)
	return m, cmd
}

func (m ConnectModel) updateImport(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modePick
		m.errMsg = ""
		return m, nil
	case "tab", "shift+tab", "down", "up":
		if msg.String() == "shift+tab" || msg.String() == "up" {
			m.focus = (m.focus + 2) % 3
		} else {
			m.focus = (m.focus + 1) % 3
		}
		inputs := []*textinput.Model{&m.label, &m.secret, &m.password}
		for i, input := range inputs {
			if i == m.focus {
				input.Focus()
			} else {
				input.Blur()
			}
		}
		return m, textinput.Blink
	case "enter":
		m.loading = true
		m.errMsg = ""
		if m.mode == modeImportMnemonic {
			return m, m.importMnemonicCmd(m.label.Value(), m.secret.Value(), m.password.Value())
		}
		return m, m.importKeyCmd(m.label.Value(), m.secret.Value(), m.password.Value())
	}

	var cmd tea.Cmd
	switch m.focus {
	case 0:
		m.label, cmd = m.label.Update(msg)
	case 1:
		m.secret, cmd = m.secret.Update(msg)
	case 2:
		m.password, cmd = m.password.Update(msg)
	}
	return m, cmd
}

func (m ConnectModel) updateWatch(msg tea.KeyMsg) (ConnectModel, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.mode = modePick
		m.errMsg = ""
		return m, nil
	case "enter":
		addr := strings.TrimSpace(m.address.Value())
		if !utils.IsHexAddress(addr) {
			m.errMsg = "The address is invalid."
			return m, nil
		}
		m.loading = true
		m.errMsg = ""
		return m, m.watchCmd(addr)
	}

	var cmd tea.Cmd
	m.address, cmd = m.address.Update(msg)
	return m, cmd
}

func (m ConnectModel) View() string {
	var content strings.Builder

	content.WriteString(titleStyle.Render("ethterm"))
	content.WriteString("\n")
	content.WriteString(mutedStyle.Render(fmt.Sprintf("Network: %s (chain %d)", m.network.Name, m.network.ChainID)))
	content.WriteString("\n\n")

	switch m.mode {
	case modePick:
		content.WriteString(m.renderPick())
	case modeUnlock:
		content.WriteString(labelStyle.Render(fmt.Sprintf("Unlock %s (%s)", m.unlockKey.Label, utils.ShortAddress(m.unlockKey.Address))))
		content.WriteString("\n\n")
		content.WriteString(m.password.View())
		content.WriteString("\n\n")
		content.WriteString(helpStyle.Render("enter: unlock • esc: back"))
	case modeImportMnemonic, modeImportKey:
		title := "Import mnemonic"
		if m.mode == modeImportKey {
			title = "Import private key"
		}
		content.WriteString(labelStyle.Render(title))
		content.WriteString("\n\n")
		content.WriteString("Label:    " + m.label.View() + "\n")
		content.WriteString("Secret:   " + m.secret.View() + "\n")
		content.WriteString("Password: " + m.password.View() + "\n\n")
		content.WriteString(helpStyle.Render("tab: next field • enter: import and connect • esc: back"))
	case modeWatch:
		content.WriteString(labelStyle.Render("Watch an address"))
		content.WriteString("\n\n")
		content.WriteString(m.address.View())
		content.WriteString("\n\n")
		content.WriteString(helpStyle.Render("enter: watch • esc: back"))
	}

	if m.loading {
		content.WriteString("\n\n")
		content.WriteString(mutedStyle.Render("Connecting..."))
	}
	if m.errMsg != "" {
		content.WriteString("\n\n")
		content.WriteString(errorStyle.Render("✗ " + m.errMsg))
	}

	return containerStyle.Render(content.String())
}

func (m ConnectModel) renderPick() string {
	var content strings.Builder

	if last := m.sessions.LastConnected(); last != nil {
		hint := fmt.Sprintf("Last session: %s on %s",
			utils.ShortAddress(last.Address), m.sessions.NetworkName(last.ChainID))
		content.WriteString(mutedStyle.Render(hint))
		content.WriteString("\n\n")
	}

	content.WriteString(labelStyle.Render("Connect with:"))
	content.WriteString("\n\n")

	row := 0
	render := func(text string) {
		cursor := " "
		style := itemStyle
		if m.selected == row {
			cursor = ">"
			style = selectedItemStyle
		}
		content.WriteString(style.Render(fmt.Sprintf("%s %s", cursor, text)))
		content.WriteString("\n")
		row++
	}

	for _, key := range m.keys {
		render(fmt.Sprintf("%s (%s)", utils.TruncateString(key.Label, 24), utils.ShortAddress(key.Address)))
	}
	for _, action := range connectActions {
		render(action)
	}

	content.WriteString("\n")
	help := "↑/↓: navigate • enter: select • n: switch network • q: quit"
	if len(m.keys) > 0 {
		help = "↑/↓: navigate • enter: select • x: delete key • n: switch network • q: quit"
	}
	content.WriteString(helpStyle.Render(help))

	return content.String()
}

func (m ConnectModel) nextNetwork() config.Network {
	names := make([]string, 0, len(m.cfg.Networks))
	for _, n := range m.cfg.Networks {
		names = append(names, n.Name)
	}
	if len(names) == 0 {
		return m.network
	}
	// Walk the registry in a stable order so repeated presses cycle.
	sort.Strings(names)
	for i, name := range names {
		if name == m.network.Name {
			next, _ := m.cfg.Network(names[(i+1)%len(names)])
			return next
		}
	}
	next, _ := m.cfg.Network(names[0])
	return next
}

func (m ConnectModel) unlockCmd(address, password string) tea.Cmd {
	return func() tea.Msg {
		connector, err := m.keystore.Unlock(address, password)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return m.establish(connector, connector)
	}
}

func (m ConnectModel) importMnemonicCmd(label, mnemonic, password string) tea.Cmd {
	return func() tea.Msg {
		key, err := m.keystore.ImportMnemonic(label, strings.TrimSpace(mnemonic), password)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		connector, err := m.keystore.Unlock(key.Address, password)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return m.establish(connector, connector)
	}
}

func (m ConnectModel) importKeyCmd(label, hexKey, password string) tea.Cmd {
	return func() tea.Msg {
		key, err := m.keystore.ImportHex(label, strings.TrimSpace(hexKey), password)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		connector, err := m.keystore.Unlock(key.Address, password)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		return m.establish(connector, connector)
	}
}

func (m ConnectModel) watchCmd(address string) tea.Cmd {
	return func() tea.Msg {
		addr, err := wallet.ValidateAddress(address)
		if err != nil {
			return ErrorMsg{Err: err}
		}
		connector := wallet.NewWatchOnlyConnector(addr)
		return m.establish(connector, connector)
	}
}

// establish dials the chain endpoint and opens the session. It runs on a
// command goroutine; the returned message hands ownership of the client to
// the app model.
func (m ConnectModel) establish(connector session.Connector, signer wallet.Signer) tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
	defer cancel()

	client, err := chain.Dial(ctx, chainConfig(m.cfg, m.network), m.log)
	if err != nil {
		_ = connector.Close()
		return ErrorMsg{Err: err}
	}

	if err := m.sessions.Connect(ctx, connector, m.network.ChainID); err != nil {
		client.Close()
		_ = connector.Close()
		return ErrorMsg{Err: err}
	}

	return ConnectedMsg{Client: client, Signer: signer, Network: m.network}
}

func chainConfig(cfg *config.Config, network config.Network) chain.Config {
	return chain.Config{
		Name:          network.Name,
		ChainID:       network.ChainID,
		RPCURL:        network.RPCURL,
		Timeout:       cfg.Timeout,
		TxWaitTimeout: cfg.TxWaitTimeout,
		PollInterval:  cfg.PollInterval,
		CacheTTL:      cfg.CacheTTL,
	}
}

