package views

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"ethterm/internal/notify"
	"ethterm/internal/utils"
)

var (
	containerStyle = lipgloss.NewStyle().
			Padding(1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(utils.Colours.Blue))

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Blue)).
			Bold(true).
			Align(lipgloss.Center)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Text)).
			Bold(true)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Text))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Subtext0))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Red))

	validStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Green))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(utils.Colours.Subtext0)).
			Italic(true).
			Align(lipgloss.Center)

	selectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color(utils.Colours.Green)).
				Background(lipgloss.Color(utils.Colours.Surface0)).
				Padding(0, 2).
				Bold(true)

	itemStyle = lipgloss.NewStyle().
			Padding(0, 2)
)

func cardStyle(colour string, width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(colour)).
		Padding(1).
		Width(width)
}

func cardTitleStyle(colour string) lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(colour)).
		Bold(true).
		Align(lipgloss.Center)
}

func toastColour(kind notify.Kind) string {
	switch kind {
	case notify.KindSuccess:
		return utils.Colours.Green
	case notify.KindError:
		return utils.Colours.Red
	case notify.KindLoading:
		return utils.Colours.Yellow
	default:
		return utils.Colours.Blue
	}
}

func renderToast(toast notify.Toast) string {
	style := lipgloss.NewStyle().
		Foreground(lipgloss.Color(toastColour(toast.Kind))).
		Background(lipgloss.Color(utils.Colours.Surface0)).
		Padding(0, 1).
		Bold(true)

	prefix := ""
	switch toast.Kind {
	case notify.KindSuccess:
		prefix = "✓ "
	case notify.KindError:
		prefix = "✗ "
	case notify.KindLoading:
		prefix = "… "
	}

	return style.Render(prefix + toast.Message)
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
