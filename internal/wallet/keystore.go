package wallet

import (
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"
)

const keysFile = "keys.json"

// KeyFile is one encrypted account in the keystore index.
type KeyFile struct {
	Label     string         `json:"label"`
	Address   string         `json:"address"`
	CreatedAt time.Time      `json:"created_at"`
	Data      *EncryptedData `json:"data"`
}

type keystoreIndex struct {
	Keys []KeyFile `json:"keys"`
}

// Keystore stores password-encrypted private keys in a single JSON index
// under the data directory.
type Keystore struct {
	path string
}

func NewKeystore(dataDir string) (*Keystore, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &Keystore{path: filepath.Join(dataDir, keysFile)}, nil
}

// List returns the stored accounts without decrypting anything.
func (k *Keystore) List() ([]KeyFile, error) {
	index, err := k.load()
	if err != nil {
		return nil, err
	}
	return index.Keys, nil
}

// ImportHex encrypts and stores a raw hex private key.
func (k *Keystore) ImportHex(label, hexKey, password string) (KeyFile, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
	if err != nil {
		return KeyFile{}, fmt.Errorf("invalid private key: %w", err)
	}
	return k.importKey(label, key, password)
}

// ImportMnemonic derives the first account (m/44'/60'/0'/0/0) from a BIP-39
// mnemonic and stores it encrypted.
func (k *Keystore) ImportMnemonic(label, mnemonic, password string) (KeyFile, error) {
	key, err := DeriveKey(mnemonic)
	if err != nil {
		return KeyFile{}, err
	}
	return k.importKey(label, key, password)
}

// Unlock decrypts the account stored under address and returns a live
// connector for it.
func (k *Keystore) Unlock(address, password string) (*KeystoreConnector, error) {
	index, err := k.load()
	if err != nil {
		return nil, err
	}

	for _, kf := range index.Keys {
		if !strings.EqualFold(kf.Address, address) {
			continue
		}

		raw, err := Decrypt(kf.Data, password)
		if err != nil {
			return nil, err
		}

		key, err := crypto.ToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupted key file: %w", err)
		}

		return NewKeystoreConnector(key, kf.Label), nil
	}

	return nil, fmt.Errorf("no key stored for %s", address)
}

// Delete removes the account stored under address.
func (k *Keystore) Delete(address string) error {
	index, err := k.load()
	if err != nil {
		return err
	}

	kept := index.Keys[:0]
	for _, kf := range index.Keys {
		if !strings.EqualFold(kf.Address, address) {
			kept = append(kept, kf)
		}
	}
	if len(kept) == len(index.Keys) {
		return fmt.Errorf("no key stored for %s", address)
	}
	index.Keys = kept

	return k.save(index)
}

func (k *Keystore) importKey(label string, key *ecdsa.PrivateKey, password string) (KeyFile, error) {
	address := crypto.PubkeyToAddress(key.PublicKey)

	encrypted, err := Encrypt(crypto.FromECDSA(key), password)
	if err != nil {
		return KeyFile{}, fmt.Errorf("failed to encrypt key: %w", err)
	}

	kf := KeyFile{
		Label:     label,
		Address:   address.Hex(),
		CreatedAt: time.Now().UTC(),
		Data:      encrypted,
	}

	index, err := k.load()
	if err != nil {
		return KeyFile{}, err
	}

	for i, existing := range index.Keys {
		if strings.EqualFold(existing.Address, kf.Address) {
			index.Keys[i] = kf
			return kf, k.save(index)
		}
	}

	index.Keys = append(index.Keys, kf)
	return kf, k.save(index)
}

func (k *Keystore) load() (*keystoreIndex, error) {
	data, err := os.ReadFile(k.path)
	if errors.Is(err, os.ErrNotExist) {
		return &keystoreIndex{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore: %w", err)
	}

	var index keystoreIndex
	if err := json.Unmarshal(data, &index); err != nil {
		return nil, fmt.Errorf("failed to parse keystore: %w", err)
	}
	return &index, nil
}

func (k *Keystore) save(index *keystoreIndex) error {
	data, err := json.MarshalIndent(index, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal keystore: %w", err)
	}

	tmp := k.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return os.Rename(tmp, k.path)
}

// DeriveKey derives the m/44'/60'/0'/0/0 private key from a BIP-39 mnemonic.
func DeriveKey(mnemonic string) (*ecdsa.PrivateKey, error) {
	mnemonic = strings.TrimSpace(mnemonic)
	if !bip39.IsMnemonicValid(mnemonic) {
		return nil, errors.New("invalid mnemonic phrase")
	}

	seed := bip39.NewSeed(mnemonic, "")

	node, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to derive master key: %w", err)
	}

	for _, step := range []uint32{
		bip32.FirstHardenedChild + 44,
		bip32.FirstHardenedChild + 60,
		bip32.FirstHardenedChild,
		0,
		0,
	} {
		node, err = node.NewChildKey(step)
		if err != nil {
			return nil, fmt.Errorf("failed to derive child key: %w", err)
		}
	}

	key, err := crypto.ToECDSA(node.Key)
	if err != nil {
		return nil, fmt.Errorf("failed to build key: %w", err)
	}
	return key, nil
}

// ValidateAddress parses a display address, normalizing case.
func ValidateAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %q", s)
	}
	return common.HexToAddress(s), nil
}
