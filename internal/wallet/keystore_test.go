package wallet

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known Hardhat/Foundry dev key, safe to embed.
const (
	devKeyHex  = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"

	// BIP-39 reference vector.
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	plaintext := []byte("secret key material")

	sealed, err := Encrypt(plaintext, "correct horse")
	require.NoError(t, err)

	opened, err := Decrypt(sealed, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)

	_, err = Decrypt(sealed, "wrong password")
	assert.Error(t, err)

	_, err = Decrypt(nil, "anything")
	assert.Error(t, err)
}

func TestImportHexAndUnlock(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	require.NoError(t, err)

	kf, err := ks.ImportHex("dev", devKeyHex, "pw")
	require.NoError(t, err)
	assert.Equal(t, devAddress, kf.Address)
	assert.Equal(t, "dev", kf.Label)

	listed, err := ks.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.NotEmpty(t, listed[0].Data.Ciphertext)

	conn, err := ks.Unlock(devAddress, "pw")
	require.NoError(t, err)
	defer conn.Close()

	address, ok := conn.Address()
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress(devAddress), address)

	_, err = ks.Unlock(devAddress, "wrong")
	assert.Error(t, err)

	_, err = ks.Unlock("0x0000000000000000000000000000000000000001", "pw")
	assert.Error(t, err)
}

func TestImportHexRejectsGarbage(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	require.NoError(t, err)

	_, err = ks.ImportHex("bad", "not-a-key", "pw")
	assert.Error(t, err)
}

func TestReimportOverwrites(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	require.NoError(t, err)

	_, err = ks.ImportHex("first", devKeyHex, "pw1")
	require.NoError(t, err)
	_, err = ks.ImportHex("second", devKeyHex, "pw2")
	require.NoError(t, err)

	listed, err := ks.List()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "second", listed[0].Label)

	_, err = ks.Unlock(devAddress, "pw1")
	assert.Error(t, err, "old password must no longer open the key")
}

func TestDelete(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	require.NoError(t, err)

	_, err = ks.ImportHex("dev", devKeyHex, "pw")
	require.NoError(t, err)

	require.NoError(t, ks.Delete(devAddress))
	listed, err := ks.List()
	require.NoError(t, err)
	assert.Empty(t, listed)

	assert.Error(t, ks.Delete(devAddress))
}

func TestDeriveKeyReferenceVector(t *testing.T) {
	key, err := DeriveKey(testMnemonic)
	require.NoError(t, err)

	// First account of the reference mnemonic at m/44'/60'/0'/0/0.
	address := NewKeystoreConnector(key, "").address
	assert.Equal(t, common.HexToAddress("0x9858EfFD232B4033E47d90003D41EC34EcaEda94"), address)

	_, err = DeriveKey("definitely not a mnemonic")
	assert.Error(t, err)
}

func TestKeystoreConnectorSignsAndCloses(t *testing.T) {
	ks, err := NewKeystore(t.TempDir())
	require.NoError(t, err)
	_, err = ks.ImportHex("dev", devKeyHex, "pw")
	require.NoError(t, err)

	conn, err := ks.Unlock(devAddress, "pw")
	require.NoError(t, err)

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &common.Address{},
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})

	chainID := big.NewInt(11155111)
	signed, err := conn.SignTx(context.Background(), chainID, tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(devAddress), sender)

	require.NoError(t, conn.Close())
	_, ok := conn.Address()
	assert.False(t, ok)
	_, err = conn.SignTx(context.Background(), chainID, tx)
	assert.Error(t, err)
	require.NoError(t, conn.Close(), "double close is fine")
}

func TestWatchOnlyConnector(t *testing.T) {
	address := common.HexToAddress(devAddress)
	conn := NewWatchOnlyConnector(address)

	got, ok := conn.Address()
	require.True(t, ok)
	assert.Equal(t, address, got)

	_, err := conn.SignTx(context.Background(), big.NewInt(1), nil)
	assert.ErrorIs(t, err, ErrWatchOnly)
	assert.NoError(t, conn.Close())
}
