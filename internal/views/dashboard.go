package views

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ethterm/internal/chain"
	"ethterm/internal/config"
	"ethterm/internal/gas"
	"ethterm/internal/notify"
	"ethterm/internal/session"
	"ethterm/internal/utils"
)

var dashboardMenu = []string{
	"Send",
	"Counter",
	"Switch network",
	"Disconnect",
}

type DashboardModel struct {
	cfg      *config.Config
	network  config.Network
	client   *chain.Client
	sessions *session.Manager
	toasts   *notify.Center
	log      *zap.Logger

	session session.Session

	ethBalance   *big.Int
	tokenBalance *big.Int
	tokenSymbol  string
	balanceErr   error
	loading      bool
	lastRefresh  time.Time
	lastRequest  time.Time

	gasSnapshot *gas.Snapshot

	selected int
	width    int
	height   int

	// refreshSeq invalidates auto-refresh ticks armed before the dashboard
	// was last entered, so re-entry never stacks a second tick chain.
	refreshSeq int
}

type BalancesMsg struct {
	ETH         *big.Int
	Token       *big.Int
	TokenSymbol string
	Err         error
}

type autoRefreshMsg struct {
	seq int
}

type NetworkSwitchedMsg struct {
	Network config.Network
	Client  *chain.Client
}

func NewDashboardModel(cfg *config.Config, network config.Network, client *chain.Client, sessions *session.Manager, toasts *notify.Center, log *zap.Logger) *DashboardModel {
	return &DashboardModel{
		cfg:         cfg,
		network:     network,
		client:      client,
		sessions:    sessions,
		toasts:      toasts,
		log:         log,
		tokenSymbol: network.TokenSymbol,
	}
}

func (m *DashboardModel) SetSession(s session.Session) {
	m.session = s
}

func (m *DashboardModel) SetGas(snapshot gas.Snapshot) {
	m.gasSnapshot = &snapshot
}

// Refresh re-fetches balances and restarts the auto-refresh chain. It runs
// every time the view gains focus; bumping the sequence retires any tick
// still pending from a previous visit.
func (m *DashboardModel) Refresh() tea.Cmd {
	m.refreshSeq++
	return tea.Batch(m.fetchBalances(), autoRefresh(m.cfg.CacheTTL, m.refreshSeq))
}

func (m DashboardModel) Update(msg tea.Msg) (DashboardModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.selected > 0 {
				m.selected--
			}
		case "down", "j":
			if m.selected < len(dashboardMenu)-1 {
				m.selected++
			}
		case "enter", " ":
			switch m.selected {
			case 0:
				return m, NavigateTo(ViewSend)
			case 1:
				return m, NavigateTo(ViewCounter)
			case 2:
				return m, m.switchNetwork()
			case 3:
				return m, m.disconnect()
			}
		case "s":
			return m, NavigateTo(ViewSend)
		case "r":
			if time.Since(m.lastRequest) > 2*time.Second {
				m.lastRequest = time.Now()
				m.loading = true
				// A manual refresh means the user wants fresh numbers, not
				// whatever the cache still holds.
				if m.client != nil {
					m.client.InvalidateBalances(*m.session.Address)
				}
				cmds = append(cmds, m.fetchBalances())
			}
		case "c":
			cmds = append(cmds, m.copyAddress())
		case "q":
			return m, m.disconnect()
		}

	case BalancesMsg:
		m.loading = false
		m.balanceErr = msg.Err
		if msg.Err == nil {
			m.ethBalance = msg.ETH
			m.tokenBalance = msg.Token
			if msg.TokenSymbol != "" {
				m.tokenSymbol = msg.TokenSymbol
			}
			m.lastRefresh = time.Now()
		}

	case autoRefreshMsg:
		if msg.seq != m.refreshSeq {
			// A tick from before the last Refresh; its chain is retired.
			return m, nil
		}
		if !m.loading {
			cmds = append(cmds, m.fetchBalances())
		}
		cmds = append(cmds, autoRefresh(m.cfg.CacheTTL, msg.seq))
	}

	return m, tea.Batch(cmds...)
}

func (m DashboardModel) View() string {
	var content strings.Builder

	content.WriteString(titleStyle.Render("Dashboard"))
	content.WriteString("\n\n")
	content.WriteString(m.renderAccountLine())
	content.WriteString("\n\n")

	cards := []string{m.renderBalanceCard(), m.renderGasCard(), m.renderNetworkCard()}
	if m.width < 100 {
		content.WriteString(lipgloss.JoinVertical(lipgloss.Left, cards[0], "", cards[1], "", cards[2]))
	} else {
		content.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cards[0], "  ", cards[1], "  ", cards[2]))
	}

	content.WriteString("\n\n")
	content.WriteString(m.renderMenu())
	content.WriteString("\n\n")
	content.WriteString(helpStyle.Render("↑/↓: navigate • enter: select • r: refresh • c: copy address • q: disconnect"))

	return containerStyle.Render(content.String())
}

func (m DashboardModel) renderAccountLine() string {
	addressStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(utils.Colours.Text)).
		Background(lipgloss.Color(utils.Colours.Surface0)).
		Padding(0, 1)

	account := "not connected"
	if m.session.Address != nil {
		account = utils.ShortAddress(m.session.Address.Hex())
	}

	line := fmt.Sprintf("Account: %s (%s, %s)", account, m.session.ConnectorName, m.session.Status)
	return addressStyle.Render(line)
}

func (m DashboardModel) renderBalanceCard() string {
	var content strings.Builder
	content.WriteString(cardTitleStyle(utils.Colours.Green).Render("Balances"))
	content.WriteString("\n\n")

	switch {
	case m.loading && m.ethBalance == nil:
		content.WriteString(valueStyle.Render("Loading..."))
	case m.balanceErr != nil && m.ethBalance == nil:
		content.WriteString(errorStyle.Render("Unavailable"))
	default:
		content.WriteString(valueStyle.Render(utils.FormatBalance(m.ethBalance, m.network.Symbol, 18)))
		if m.network.Token != "" && m.tokenBalance != nil {
			content.WriteString("\n")
			content.WriteString(valueStyle.Render(utils.FormatBalance(m.tokenBalance, m.tokenSymbol, m.network.TokenDecimals)))
		}
	}

	content.WriteString("\n\n")
	if !m.lastRefresh.IsZero() {
		content.WriteString(mutedStyle.Render(fmt.Sprintf("Updated %s ago", formatDuration(time.Since(m.lastRefresh)))))
	} else {
		content.WriteString(mutedStyle.Render("Never updated"))
	}

	return cardStyle(utils.Colours.Green, 32).Render(content.String())
}

func (m DashboardModel) renderGasCard() string {
	var content strings.Builder
	content.WriteString(cardTitleStyle(utils.Colours.Peach).Render("Gas"))
	content.WriteString("\n\n")

	if m.gasSnapshot == nil {
		content.WriteString(mutedStyle.Render("Waiting for data..."))
	} else {
		content.WriteString(valueStyle.Render("Slow:     " + utils.FormatGwei(m.gasSnapshot.Slow)))
		content.WriteString("\n")
		content.WriteString(valueStyle.Render("Standard: " + utils.FormatGwei(m.gasSnapshot.Standard)))
		content.WriteString("\n")
		content.WriteString(valueStyle.Render("Fast:     " + utils.FormatGwei(m.gasSnapshot.Fast)))
		if m.gasSnapshot.BaseFee != nil {
			content.WriteString("\n")
			content.WriteString(mutedStyle.Render("Base fee: " + utils.FormatGwei(m.gasSnapshot.BaseFee)))
		}
		content.WriteString("\n\n")
		content.WriteString(mutedStyle.Render(fmt.Sprintf("As of %s ago", formatDuration(time.Since(m.gasSnapshot.At)))))
	}

	return cardStyle(utils.Colours.Peach, 30).Render(content.String())
}

func (m DashboardModel) renderNetworkCard() string {
	var content strings.Builder
	content.WriteString(cardTitleStyle(utils.Colours.Blue).Render("Network"))
	content.WriteString("\n\n")

	status := m.client.Status()
	if status.Connected {
		content.WriteString(validStyle.Render("● Connected"))
	} else {
		content.WriteString(errorStyle.Render("● Disconnected"))
	}
	content.WriteString("\n")
	content.WriteString(valueStyle.Render(fmt.Sprintf("%s (chain %d)", m.network.Name, m.network.ChainID)))
	if status.BlockNumber > 0 {
		content.WriteString("\n")
		content.WriteString(valueStyle.Render(fmt.Sprintf("Block: %d", status.BlockNumber)))
	}

	return cardStyle(utils.Colours.Blue, 28).Render(content.String())
}

func (m DashboardModel) renderMenu() string {
	var content strings.Builder
	for i, item := range dashboardMenu {
		cursor := " "
		style := itemStyle
		if m.selected == i {
			cursor = ">"
			style = selectedItemStyle
		}
		content.WriteString(style.Render(fmt.Sprintf("%s %s", cursor, item)))
		content.WriteString("\n")
	}
	return content.String()
}

func (m DashboardModel) fetchBalances() tea.Cmd {
	client := m.client
	network := m.network
	address := m.session.Address
	sessions := m.sessions

	return func() tea.Msg {
		account := sessions.Session().Address
		if account == nil {
			account = address
		}
		if account == nil {
			return BalancesMsg{Err: fmt.Errorf("no account connected")}
		}

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()

		eth, err := client.Balance(ctx, *account)
		if err != nil {
			return BalancesMsg{Err: err}
		}

		var token *big.Int
		symbol := ""
		if network.Token != "" {
			tokenAddr := common.HexToAddress(network.Token)
			token, err = client.TokenBalance(ctx, tokenAddr, *account)
			if err != nil {
				return BalancesMsg{ETH: eth, Err: err}
			}
			if s, _, metaErr := client.TokenMeta(ctx, tokenAddr); metaErr == nil {
				symbol = s
			}
		}

		return BalancesMsg{ETH: eth, Token: token, TokenSymbol: symbol}
	}
}

func (m DashboardModel) copyAddress() tea.Cmd {
	address := m.session.Address
	toasts := m.toasts
	return func() tea.Msg {
		if address == nil {
			return nil
		}
		if err := utils.CopyToClipboard(address.Hex()); err != nil {
			toasts.ShowError("Failed to copy address to clipboard.", "")
			return nil
		}
		toasts.ShowSuccess("Address copied to clipboard.", "")
		return nil
	}
}

// switchNetwork cycles to the next configured network. Connectors without
// chain switching surface the unsupported-operation error as a toast and the
// session stays put.
func (m DashboardModel) switchNetwork() tea.Cmd {
	cfg := m.cfg
	current := m.network
	sessions := m.sessions
	toasts := m.toasts
	log := m.log

	return func() tea.Msg {
		names := cfg.ChainNames()
		ids := make([]uint64, 0, len(names))
		for id := range names {
			ids = append(ids, id)
		}
		if len(ids) < 2 {
			toasts.ShowError("No other network is configured.", "")
			return nil
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

		next := ids[0]
		for i, id := range ids {
			if id == current.ChainID {
				next = ids[(i+1)%len(ids)]
				break
			}
		}

		network, ok := cfg.NetworkByChainID(next)
		if !ok {
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
		defer cancel()

		client, err := switchSession(ctx, sessions, next, func(ctx context.Context) (*chain.Client, error) {
			return chain.Dial(ctx, chainConfig(cfg, network), log)
		})
		if err != nil {
			toasts.ShowError(err.Error(), "")
			return nil
		}

		toasts.ShowSuccess(fmt.Sprintf("Switched to %s.", network.Name), "")
		return NetworkSwitchedMsg{Network: network, Client: client}
	}
}

// switchSession dials the target chain before touching the session, so a
// failed dial leaves both the live session and the persisted reconnect hint
// on the chain the user is actually connected to.
func switchSession(ctx context.Context, sessions *session.Manager, chainID uint64, dial func(context.Context) (*chain.Client, error)) (*chain.Client, error) {
	if _, ok := sessions.Connector().(session.ChainSwitcher); !ok {
		return nil, fmt.Errorf("%w: reconnect on the desired network instead", session.ErrUnsupportedOperation)
	}

	client, err := dial(ctx)
	if err != nil {
		return nil, err
	}

	if err := sessions.SwitchNetwork(ctx, chainID); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (m DashboardModel) disconnect() tea.Cmd {
	sessions := m.sessions
	toasts := m.toasts
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Timeout)
		defer cancel()

		if err := sessions.Disconnect(ctx); err != nil {
			toasts.ShowError(err.Error(), "")
			return nil
		}
		return DisconnectedMsg{}
	}
}

func autoRefresh(interval time.Duration, seq int) tea.Cmd {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return autoRefreshMsg{seq: seq}
	})
}
