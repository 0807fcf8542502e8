package views

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ethterm/internal/config"
	"ethterm/internal/wallet"
)

const testPrivKey = "fad9c8855b740a0b7ed4c221dbad0f33a83a49cad6b3fe8d5817ac83d38b6a19"

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestConnectPickerDeletesStoredKey(t *testing.T) {
	keystore, err := wallet.NewKeystore(t.TempDir())
	require.NoError(t, err)
	imported, err := keystore.ImportHex("hot wallet", testPrivKey, "pw")
	require.NoError(t, err)

	cfg := &config.Config{}
	network := config.Network{Name: "sepolia", ChainID: 11155111}
	model := NewConnectModel(cfg, network, keystore, newTestManager(t), zap.NewNop())
	require.Len(t, model.keys, 1)

	next, _ := model.Update(keyRune('x'))
	assert.Empty(t, next.keys)
	assert.Less(t, next.selected, len(connectActions))

	remaining, err := keystore.List()
	require.NoError(t, err)
	assert.Empty(t, remaining)

	// The key is gone for good; unlocking it must fail.
	_, err = keystore.Unlock(imported.Address, "pw")
	assert.Error(t, err)
}

func TestConnectPickerDeleteIgnoresActionRows(t *testing.T) {
	keystore, err := wallet.NewKeystore(t.TempDir())
	require.NoError(t, err)
	_, err = keystore.ImportHex("hot wallet", testPrivKey, "pw")
	require.NoError(t, err)

	model := NewConnectModel(&config.Config{}, config.Network{Name: "sepolia", ChainID: 11155111}, keystore, newTestManager(t), zap.NewNop())
	model.selected = len(model.keys) // first action entry

	next, _ := model.Update(keyRune('x'))
	assert.Len(t, next.keys, 1, "x on an action row must not touch stored keys")
}
