package utils

import (
	"fmt"
	"os"

	"github.com/atotto/clipboard"
	"github.com/aymanbagabas/go-osc52/v2"
)

// CopyToClipboard copies text using the system clipboard when one is
// available, falling back to an OSC 52 escape written to the controlling
// terminal (the only option over SSH). Returns an error instead of panicking
// when neither tier works.
func CopyToClipboard(text string) error {
	if err := clipboard.WriteAll(text); err == nil {
		return nil
	}

	return copyOSC52(text)
}

func copyOSC52(text string) error {
	tty, err := os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("no clipboard available: %w", err)
	}
	defer tty.Close()

	if _, err := osc52.New(text).WriteTo(tty); err != nil {
		return fmt.Errorf("failed to write clipboard escape: %w", err)
	}

	return nil
}
