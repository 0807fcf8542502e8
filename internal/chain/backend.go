package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"ethterm/internal/wallet"
)

// TransferBackend binds a client and an unlocked signer into the submit/wait
// pair the transaction flow drives. One backend serves a session; a new
// connection gets a new backend.
type TransferBackend struct {
	client *Client
	signer wallet.Signer
}

func NewTransferBackend(client *Client, signer wallet.Signer) *TransferBackend {
	return &TransferBackend{client: client, signer: signer}
}

// Submit signs and broadcasts either a native transfer or, when token is
// set, an ERC-20 transfer.
func (b *TransferBackend) Submit(ctx context.Context, to common.Address, amount *big.Int, token *common.Address) (common.Hash, error) {
	if token != nil {
		return b.client.SendToken(ctx, b.signer, *token, to, amount)
	}
	return b.client.SendETH(ctx, b.signer, to, amount)
}

func (b *TransferBackend) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return b.client.WaitForReceipt(ctx, hash)
}
