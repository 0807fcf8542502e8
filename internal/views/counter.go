package views

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"ethterm/internal/chain"
	"ethterm/internal/config"
	"ethterm/internal/notify"
	"ethterm/internal/txflow"
	"ethterm/internal/utils"
	"ethterm/internal/wallet"
)

type CounterModel struct {
	network config.Network
	client  *chain.Client
	signer  wallet.Signer
	flow    *txflow.Flow
	toasts  *notify.Center
	log     *zap.Logger

	counter    common.Address
	configured bool

	value    *big.Int
	valueErr error
	loading  bool

	attempt *txflow.Attempt
	spin    spinner.Model

	feed     viewport.Model
	events   []string
	eventCh  <-chan chain.CounterEvent
	watchCtx context.CancelFunc
}

// How often the displayed value is re-read while the panel is visible.
const counterRefreshInterval = 15 * time.Second

type CounterValueMsg struct {
	Value *big.Int
	Err   error
}

type counterRefreshMsg struct{}

type CounterEventMsg struct {
	Event chain.CounterEvent
	OK    bool
}

func NewCounterModel(network config.Network, client *chain.Client, signer wallet.Signer, flow *txflow.Flow, toasts *notify.Center, log *zap.Logger) *CounterModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot
	spin.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(utils.Colours.Yellow))

	feed := viewport.New(60, 8)

	m := &CounterModel{
		network: network,
		client:  client,
		signer:  signer,
		flow:    flow,
		toasts:  toasts,
		log:     log,
		spin:    spin,
		feed:    feed,
	}
	if network.Counter != "" && utils.IsHexAddress(network.Counter) {
		m.counter = common.HexToAddress(network.Counter)
		m.configured = true
	}
	return m
}

// StartWatching subscribes to the counter's change events. Called when the
// panel becomes visible.
func (m *CounterModel) StartWatching() tea.Cmd {
	if !m.configured {
		return nil
	}

	m.StopWatching()
	ctx, cancel := context.WithCancel(context.Background())
	m.watchCtx = cancel

	events, err := m.client.WatchCounterChanged(ctx, m.counter)
	if err != nil {
		cancel()
		m.watchCtx = nil
		m.log.Warn("counter event watch failed", zap.Error(err))
		return m.fetchValue()
	}
	m.eventCh = events

	return tea.Batch(m.fetchValue(), m.waitEvent(), counterRefresh(), m.spin.Tick)
}

// StopWatching tears down the event subscription. Called when the panel is
// left; a fresh subscription is made on the next visit.
func (m *CounterModel) StopWatching() {
	if m.watchCtx != nil {
		m.watchCtx()
		m.watchCtx = nil
	}
	m.eventCh = nil
}

func (m CounterModel) Init() tea.Cmd {
	return m.fetchValue()
}

func (m CounterModel) Update(msg tea.Msg) (CounterModel, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		width := msg.Width - 12
		if width < 30 {
			width = 30
		}
		m.feed.Width = width

	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			if m.attempt != nil && m.attempt.InFlight() {
				m.attempt.Detach()
				m.attempt = nil
				m.toasts.ShowInfo("Transaction continues in the background.")
			}
			return m, NavigateTo(ViewDashboard)
		case "+", "i":
			return m.startWrite(true)
		case "-", "d":
			return m.startWrite(false)
		case "r":
			m.loading = true
			return m, m.fetchValue()
		}

	case CounterValueMsg:
		m.loading = false
		m.valueErr = msg.Err
		if msg.Err == nil {
			m.value = msg.Value
		}

	case counterRefreshMsg:
		// The ticker only re-arms while the watcher is live, so a hidden
		// panel stops all polling.
		if m.watchCtx != nil {
			return m, tea.Batch(m.fetchValue(), counterRefresh())
		}
		return m, nil

	case CounterEventMsg:
		if !msg.OK {
			return m, nil
		}
		m.value = msg.Event.NewValue
		line := fmt.Sprintf("block %d  value %s  %s",
			msg.Event.BlockNumber, msg.Event.NewValue.String(), utils.FormatTxHash(msg.Event.TxHash))
		m.events = append(m.events, line)
		m.feed.SetContent(strings.Join(m.events, "\n"))
		m.feed.GotoBottom()
		return m, m.waitEvent()

	case AttemptUpdateMsg:
		if m.attempt == nil {
			return m, nil
		}
		if msg.Update.Status == txflow.StatusConfirmed {
			cmds = append(cmds, m.fetchValue())
		}
		cmds = append(cmds, m.waitAttempt())
		return m, tea.Batch(cmds...)

	case attemptDoneMsg:
		return m, nil

	case spinner.TickMsg:
		if m.attempt != nil && m.attempt.InFlight() {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.feed, cmd = m.feed.Update(msg)
	return m, cmd
}

func (m CounterModel) startWrite(increment bool) (CounterModel, tea.Cmd) {
	if !m.configured {
		return m, nil
	}
	if m.attempt != nil && m.attempt.InFlight() {
		return m, nil
	}

	client := m.client
	signer := m.signer
	counter := m.counter

	submit := func(ctx context.Context) (common.Hash, error) {
		if increment {
			return client.IncrementCounter(ctx, signer, counter)
		}
		return client.DecrementCounter(ctx, signer, counter)
	}

	m.attempt = m.flow.StartCall(context.Background(), submit, txflow.Callbacks{})
	return m, tea.Batch(m.waitAttempt(), m.spin.Tick)
}

func (m CounterModel) fetchValue() tea.Cmd {
	if !m.configured {
		return nil
	}
	client := m.client
	counter := m.counter
	return func() tea.Msg {
		value, err := client.CounterValue(context.Background(), counter)
		return CounterValueMsg{Value: value, Err: err}
	}
}

func counterRefresh() tea.Cmd {
	return tea.Tick(counterRefreshInterval, func(time.Time) tea.Msg {
		return counterRefreshMsg{}
	})
}

func (m CounterModel) waitEvent() tea.Cmd {
	ch := m.eventCh
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-ch
		return CounterEventMsg{Event: event, OK: ok}
	}
}

func (m CounterModel) waitAttempt() tea.Cmd {
	attempt := m.attempt
	if attempt == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u := <-attempt.Updates():
			return AttemptUpdateMsg{Update: u}
		case <-attempt.Done():
			select {
			case u := <-attempt.Updates():
				return AttemptUpdateMsg{Update: u}
			default:
				return attemptDoneMsg{}
			}
		}
	}
}

func (m CounterModel) View() string {
	var content strings.Builder

	content.WriteString(titleStyle.Render("Counter"))
	content.WriteString("\n\n")

	if !m.configured {
		content.WriteString(mutedStyle.Render(fmt.Sprintf("No counter contract is configured on %s.", m.network.Name)))
		content.WriteString("\n\n")
		content.WriteString(helpStyle.Render("esc: back"))
		return containerStyle.Render(content.String())
	}

	content.WriteString(mutedStyle.Render("Contract: " + utils.ShortAddress(m.counter.Hex())))
	content.WriteString("\n\n")

	switch {
	case m.loading && m.value == nil:
		content.WriteString(valueStyle.Render("Value: loading..."))
	case m.valueErr != nil && m.value == nil:
		content.WriteString(errorStyle.Render("Value: unavailable"))
	case m.value != nil:
		content.WriteString(labelStyle.Render(fmt.Sprintf("Value: %s", m.value.String())))
	default:
		content.WriteString(valueStyle.Render("Value: -"))
	}
	content.WriteString("\n\n")

	if m.attempt != nil && m.attempt.InFlight() {
		content.WriteString(m.spin.View())
		content.WriteString(mutedStyle.Render(" transaction in flight..."))
		content.WriteString("\n\n")
	}

	content.WriteString(labelStyle.Render("Events"))
	content.WriteString("\n")
	if len(m.events) == 0 {
		content.WriteString(mutedStyle.Render("No events yet."))
	} else {
		content.WriteString(m.feed.View())
	}
	content.WriteString("\n\n")
	content.WriteString(helpStyle.Render("+: increment • -: decrement • r: refresh • esc: back"))

	return containerStyle.Render(content.String())
}
