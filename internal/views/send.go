package views

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"ethterm/internal/chain"
	"ethterm/internal/config"
	"ethterm/internal/notify"
	"ethterm/internal/txflow"
	"ethterm/internal/utils"
)

type SendModel struct {
	network config.Network
	flow    *txflow.Flow
	client  *chain.Client
	toasts  *notify.Center

	recipient textinput.Model
	amount    textinput.Model
	useToken  bool
	focus     int

	recipientErr string
	amountErr    string

	attempt *txflow.Attempt
}

type AttemptUpdateMsg struct {
	Update txflow.Update
}

type attemptDoneMsg struct{}

func NewSendModel(network config.Network, flow *txflow.Flow, client *chain.Client, toasts *notify.Center) *SendModel {
	recipient := textinput.New()
	recipient.Placeholder = "0x..."
	recipient.CharLimit = 42
	recipient.Focus()

	amount := textinput.New()
	amount.Placeholder = "0.0"
	amount.CharLimit = 32

	return &SendModel{
		network:   network,
		flow:      flow,
		client:    client,
		toasts:    toasts,
		recipient: recipient,
		amount:    amount,
	}
}

// Reset clears the form when the view regains focus. An in-flight attempt is
// left alone; its toasts keep arriving through the notification center.
func (m *SendModel) Reset() tea.Cmd {
	if m.attempt == nil || !m.attempt.InFlight() {
		m.attempt = nil
		m.recipient.SetValue("")
		m.amount.SetValue("")
		m.recipientErr = ""
		m.amountErr = ""
		m.focus = 0
		m.recipient.Focus()
		m.amount.Blur()
	}
	return textinput.Blink
}

func (m SendModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m SendModel) Update(msg tea.Msg) (SendModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			// Leaving mid-flight detaches the attempt rather than cancelling
			// it: the transaction is already on its way and its keyed toasts
			// will still resolve.
			if m.attempt != nil && m.attempt.InFlight() {
				m.attempt.Detach()
				m.attempt = nil
				m.toasts.ShowInfo("Transaction continues in the background.")
			}
			return m, NavigateTo(ViewDashboard)

		case "tab", "shift+tab", "up", "down":
			m.focus = (m.focus + 1) % 2
			if m.focus == 0 {
				m.recipient.Focus()
				m.amount.Blur()
			} else {
				m.amount.Focus()
				m.recipient.Blur()
			}
			return m, textinput.Blink

		case "ctrl+t":
			if m.network.Token != "" {
				m.useToken = !m.useToken
			}
			return m, nil

		case "enter":
			return m.submit()
		}

		var cmd tea.Cmd
		if m.focus == 0 {
			m.recipient, cmd = m.recipient.Update(msg)
		} else {
			m.amount, cmd = m.amount.Update(msg)
		}
		m.validate()
		return m, cmd

	case AttemptUpdateMsg:
		if m.attempt == nil {
			return m, nil
		}
		return m, m.waitAttempt()

	case attemptDoneMsg:
		return m, nil
	}

	return m, nil
}

func (m *SendModel) validate() {
	m.recipientErr = ""
	m.amountErr = ""

	if value := strings.TrimSpace(m.recipient.Value()); value != "" && !utils.IsHexAddress(value) {
		m.recipientErr = "The recipient address is invalid."
	}
	if value := strings.TrimSpace(m.amount.Value()); value != "" {
		if parsed := utils.ParseUnits(value, m.decimals()); parsed.Sign() <= 0 {
			m.amountErr = "Enter an amount greater than zero."
		}
	}
}

func (m *SendModel) decimals() int {
	if m.useToken {
		return m.network.TokenDecimals
	}
	return 18
}

func (m SendModel) submit() (SendModel, tea.Cmd) {
	if m.attempt != nil && m.attempt.InFlight() {
		return m, nil
	}

	req := txflow.Request{
		Recipient: strings.TrimSpace(m.recipient.Value()),
		Amount:    strings.TrimSpace(m.amount.Value()),
		Decimals:  m.decimals(),
	}
	if m.useToken {
		req.Token = m.network.Token
	}

	attempt, err := m.flow.Start(context.Background(), req, txflow.Callbacks{})
	if err != nil {
		var vErr *txflow.ValidationError
		if errors.As(err, &vErr) {
			switch vErr.Field {
			case "recipient", "token":
				m.recipientErr = vErr.Error()
			default:
				m.amountErr = vErr.Error()
			}
		} else {
			m.amountErr = err.Error()
		}
		return m, nil
	}

	m.attempt = attempt
	return m, m.waitAttempt()
}

func (m SendModel) waitAttempt() tea.Cmd {
	attempt := m.attempt
	if attempt == nil {
		return nil
	}
	return func() tea.Msg {
		select {
		case u := <-attempt.Updates():
			return AttemptUpdateMsg{Update: u}
		case <-attempt.Done():
			// Drain anything buffered before the attempt finished.
			select {
			case u := <-attempt.Updates():
				return AttemptUpdateMsg{Update: u}
			default:
				return attemptDoneMsg{}
			}
		}
	}
}

func (m SendModel) View() string {
	var content strings.Builder

	content.WriteString(titleStyle.Render("Send"))
	content.WriteString("\n\n")

	asset := m.network.Symbol
	if m.useToken {
		asset = m.network.TokenSymbol
	}
	content.WriteString(labelStyle.Render(fmt.Sprintf("Asset: %s", asset)))
	if m.network.Token != "" {
		content.WriteString(mutedStyle.Render("  (ctrl+t to toggle)"))
	}
	content.WriteString("\n\n")

	content.WriteString("Recipient: " + m.recipient.View() + "\n")
	if m.recipientErr != "" {
		content.WriteString(errorStyle.Render("✗ " + m.recipientErr))
		content.WriteString("\n")
	} else if utils.IsHexAddress(strings.TrimSpace(m.recipient.Value())) {
		content.WriteString(validStyle.Render("✓ Valid address"))
		content.WriteString("\n")
	}

	content.WriteString("Amount:    " + m.amount.View() + "\n")
	if m.amountErr != "" {
		content.WriteString(errorStyle.Render("✗ " + m.amountErr))
		content.WriteString("\n")
	}

	content.WriteString("\n")
	content.WriteString(m.renderStatus())
	content.WriteString("\n\n")
	content.WriteString(helpStyle.Render("tab: switch field • enter: send • esc: back"))

	return containerStyle.Render(content.String())
}

func (m SendModel) renderStatus() string {
	if m.attempt == nil {
		return mutedStyle.Render("Ready.")
	}

	status := m.attempt.Status()
	switch status {
	case txflow.StatusPendingSignature:
		return mutedStyle.Render("Waiting for signature...")
	case txflow.StatusSubmitted, txflow.StatusConfirming:
		hash := m.attempt.Hash()
		return mutedStyle.Render(fmt.Sprintf("Confirming %s...", utils.FormatTxHash(hash.Hex())))
	case txflow.StatusConfirmed:
		hash := m.attempt.Hash()
		return validStyle.Render(fmt.Sprintf("✓ Confirmed %s", utils.FormatTxHash(hash.Hex())))
	case txflow.StatusFailed:
		return errorStyle.Render("✗ Transaction failed. See the notification for details.")
	default:
		return mutedStyle.Render("Ready.")
	}
}
