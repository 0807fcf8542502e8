package views

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go.uber.org/zap"

	"ethterm/internal/chain"
	"ethterm/internal/config"
	"ethterm/internal/gas"
	"ethterm/internal/notify"
	"ethterm/internal/session"
	"ethterm/internal/txflow"
	"ethterm/internal/wallet"
)

type ViewState int

const (
	ViewConnect ViewState = iota
	ViewDashboard
	ViewSend
	ViewCounter
)

type AppModel struct {
	state  ViewState
	width  int
	height int

	cfg      *config.Config
	network  config.Network
	log      *zap.Logger
	keystore *wallet.Keystore
	sessions *session.Manager
	toasts   *notify.Center

	// Per-connection state, rebuilt on every connect and network switch.
	client     *chain.Client
	signer     wallet.Signer
	flow       *txflow.Flow
	gasMonitor *gas.Monitor

	connectView   *ConnectModel
	dashboardView *DashboardModel
	sendView      *SendModel
	counterView   *CounterModel

	sessionCh     <-chan session.Session
	sessionCancel func()
}

type NavigateMsg struct {
	State ViewState
}

type ErrorMsg struct {
	Err error
}

// ConnectedMsg carries a freshly dialed client and the signer behind the
// active connector. The connect view emits it once the session is
// established; the dashboard emits it again after a network switch.
type ConnectedMsg struct {
	Client  *chain.Client
	Signer  wallet.Signer
	Network config.Network
}

type DisconnectedMsg struct{}

type SessionChangedMsg struct {
	Session session.Session
}

type GasUpdateMsg struct {
	Snapshot gas.Snapshot
}

type toastTickMsg struct{}

func NewAppModel(cfg *config.Config, networkName string, log *zap.Logger) (*AppModel, error) {
	network, ok := cfg.Network(networkName)
	if !ok {
		network, _ = cfg.Network(cfg.DefaultNetwork)
	}

	keystore, err := wallet.NewKeystore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	store, err := session.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(store, cfg.ChainNames(), log)
	toasts := notify.NewCenter()

	app := &AppModel{
		state:    ViewConnect,
		cfg:      cfg,
		network:  network,
		log:      log,
		keystore: keystore,
		sessions: sessions,
		toasts:   toasts,
	}
	app.sessionCh, app.sessionCancel = sessions.Subscribe()
	app.connectView = NewConnectModel(cfg, network, keystore, sessions, log)

	return app, nil
}

func (m AppModel) Init() tea.Cmd {
	return tea.Batch(
		m.connectView.Init(),
		m.waitForSession(),
		toastTick(),
	)
}

func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.shutdown()
			return m, tea.Quit
		}

	case NavigateMsg:
		return m.navigateTo(msg.State)

	case ErrorMsg:
		if msg.Err != nil {
			m.toasts.ShowError(msg.Err.Error(), "")
		}

	case ConnectedMsg:
		return m.onConnected(msg)

	case NetworkSwitchedMsg:
		return m.onConnected(ConnectedMsg{Client: msg.Client, Signer: m.signer, Network: msg.Network})

	case DisconnectedMsg:
		m.teardownConnection()
		return m.navigateTo(ViewConnect)

	case SessionChangedMsg:
		if m.dashboardView != nil {
			m.dashboardView.SetSession(msg.Session)
		}
		if msg.Session.Status == session.StatusDisconnected && m.state != ViewConnect {
			m.teardownConnection()
			nav, cmd := m.navigateTo(ViewConnect)
			return nav, tea.Batch(cmd, m.waitForSession())
		}
		return m, m.waitForSession()

	case GasUpdateMsg:
		if m.dashboardView != nil {
			m.dashboardView.SetGas(msg.Snapshot)
		}
		return m, m.waitForGas()

	case toastTickMsg:
		// Re-render so expired toasts disappear without user input.
		return m, toastTick()
	}

	switch m.state {
	case ViewConnect:
		if m.connectView != nil {
			*m.connectView, cmd = m.connectView.Update(msg)
		}
	case ViewDashboard:
		if m.dashboardView != nil {
			*m.dashboardView, cmd = m.dashboardView.Update(msg)
		}
	case ViewSend:
		if m.sendView != nil {
			*m.sendView, cmd = m.sendView.Update(msg)
		}
	case ViewCounter:
		if m.counterView != nil {
			*m.counterView, cmd = m.counterView.Update(msg)
		}
	}

	return m, cmd
}

func (m AppModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var content string
	switch m.state {
	case ViewConnect:
		if m.connectView != nil {
			content = m.connectView.View()
		}
	case ViewDashboard:
		if m.dashboardView != nil {
			content = m.dashboardView.View()
		}
	case ViewSend:
		if m.sendView != nil {
			content = m.sendView.View()
		}
	case ViewCounter:
		if m.counterView != nil {
			content = m.counterView.View()
		}
	}

	for _, toast := range m.toasts.Active() {
		content += "\n" + renderToast(toast)
	}

	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Render(content)
}

func (m AppModel) navigateTo(state ViewState) (tea.Model, tea.Cmd) {
	leaving := m.state
	m.state = state

	var cmds []tea.Cmd

	// The gas poller runs only while the dashboard shows the gas card, and
	// the counter watcher only while the counter panel is up.
	if leaving == ViewDashboard && state != ViewDashboard {
		m.stopGasMonitor()
	}
	if leaving == ViewCounter && m.counterView != nil {
		m.counterView.StopWatching()
	}

	switch state {
	case ViewConnect:
		m.connectView = NewConnectModel(m.cfg, m.network, m.keystore, m.sessions, m.log)
		cmds = append(cmds, m.connectView.Init())
	case ViewDashboard:
		if m.dashboardView != nil {
			cmds = append(cmds, m.dashboardView.Refresh(), m.startGasMonitor())
		}
	case ViewSend:
		if m.sendView != nil {
			cmds = append(cmds, m.sendView.Reset())
		}
	case ViewCounter:
		if m.counterView != nil {
			cmds = append(cmds, m.counterView.StartWatching())
		}
	}

	return m, tea.Batch(cmds...)
}

func (m *AppModel) onConnected(msg ConnectedMsg) (tea.Model, tea.Cmd) {
	if m.client != nil && m.client != msg.Client {
		m.stopGasMonitor()
		m.gasMonitor = nil
		m.client.Close()
	}

	m.client = msg.Client
	m.signer = msg.Signer
	m.network = msg.Network
	m.flow = txflow.New(chain.NewTransferBackend(msg.Client, msg.Signer), m.toasts, m.log)

	m.dashboardView = NewDashboardModel(m.cfg, m.network, m.client, m.sessions, m.toasts, m.log)
	m.dashboardView.SetSession(m.sessions.Session())
	m.sendView = NewSendModel(m.network, m.flow, m.client, m.toasts)
	m.counterView = NewCounterModel(m.network, m.client, m.signer, m.flow, m.toasts, m.log)

	return m.navigateTo(ViewDashboard)
}

func (m *AppModel) startGasMonitor() tea.Cmd {
	if m.client == nil {
		return nil
	}
	if m.gasMonitor == nil {
		m.gasMonitor = gas.NewMonitor(m.client, m.cfg.GasRefresh, m.log)
	}
	m.gasMonitor.Start(context.Background())
	return m.waitForGas()
}

func (m *AppModel) stopGasMonitor() {
	if m.gasMonitor != nil {
		m.gasMonitor.Stop()
	}
}

func (m *AppModel) teardownConnection() {
	m.stopGasMonitor()
	m.gasMonitor = nil
	if m.counterView != nil {
		m.counterView.StopWatching()
	}
	if m.client != nil {
		m.client.Close()
		m.client = nil
	}
	m.signer = nil
	m.flow = nil
	m.dashboardView = nil
	m.sendView = nil
	m.counterView = nil
}

func (m *AppModel) shutdown() {
	m.teardownConnection()
	if m.sessionCancel != nil {
		m.sessionCancel()
	}
}

func (m *AppModel) waitForSession() tea.Cmd {
	ch := m.sessionCh
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return SessionChangedMsg{Session: s}
	}
}

func (m *AppModel) waitForGas() tea.Cmd {
	if m.gasMonitor == nil {
		return nil
	}
	ch := m.gasMonitor.Updates()
	done := m.gasMonitor.Done()
	return func() tea.Msg {
		select {
		case snapshot := <-ch:
			return GasUpdateMsg{Snapshot: snapshot}
		case <-done:
			return nil
		}
	}
}

func toastTick() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return toastTickMsg{}
	})
}

func NavigateTo(state ViewState) tea.Cmd {
	return func() tea.Msg {
		return NavigateMsg{State: state}
	}
}

func ShowError(err error) tea.Cmd {
	return func() tea.Msg {
		return ErrorMsg{Err: err}
	}
}
