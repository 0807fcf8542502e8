// Package chain wraps the go-ethereum client behind the small surface the
// rest of the app consumes: balances, gas reads, the demo contracts, sending,
// receipt waits, and event watching. All protocol behavior lives in
// go-ethereum; this layer adds caching, retries, and error context.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"

	"ethterm/internal/wallet"
)

const ethTransferGas = 21000

type pendingTx struct {
	tx   *types.Transaction
	from common.Address
}

type Client struct {
	eth *ethclient.Client
	cfg Config
	log *zap.Logger

	cache *BalanceCache

	mu      sync.RWMutex
	status  NetworkStatus
	pending map[common.Hash]pendingTx
}

// Dial connects to the network's RPC endpoint and verifies the chain id
// matches the configuration.
func Dial(ctx context.Context, cfg Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	eth, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", cfg.RPCURL, err)
	}

	c := &Client{
		eth:     eth,
		cfg:     cfg,
		log:     log,
		cache:   NewBalanceCache(cfg.CacheTTL),
		pending: make(map[common.Hash]pendingTx),
		status:  NetworkStatus{RPCURL: cfg.RPCURL, LastChecked: time.Now()},
	}

	if err := c.RefreshStatus(ctx); err != nil {
		eth.Close()
		return nil, err
	}

	if got := c.Status().ChainID; got != cfg.ChainID {
		eth.Close()
		return nil, fmt.Errorf("endpoint %s serves chain %d, expected %d", cfg.RPCURL, got, cfg.ChainID)
	}

	return c, nil
}

func (c *Client) Close() {
	c.eth.Close()
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() uint64 {
	return c.cfg.ChainID
}

// Status returns the last connection snapshot.
func (c *Client) Status() NetworkStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// RefreshStatus re-queries chain id and head block.
func (c *Client) RefreshStatus(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	chainID, err := c.eth.ChainID(ctx)
	if err != nil {
		c.setStatus(NetworkStatus{Connected: false, RPCURL: c.cfg.RPCURL, LastChecked: time.Now()})
		return fmt.Errorf("network error: failed to reach %s: %w", c.cfg.RPCURL, err)
	}

	block, err := c.eth.BlockNumber(ctx)
	if err != nil {
		c.setStatus(NetworkStatus{Connected: false, RPCURL: c.cfg.RPCURL, LastChecked: time.Now()})
		return fmt.Errorf("network error: failed to fetch head block: %w", err)
	}

	c.setStatus(NetworkStatus{
		Connected:   true,
		ChainID:     chainID.Uint64(),
		BlockNumber: block,
		RPCURL:      c.cfg.RPCURL,
		LastChecked: time.Now(),
	})
	return nil
}

func (c *Client) setStatus(status NetworkStatus) {
	c.mu.Lock()
	c.status = status
	c.mu.Unlock()
}

// Balance returns the native balance, served from cache within the TTL.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	key := account.Hex()
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	balance, err := withRetry(ctx, c, "balance", func(ctx context.Context) (*big.Int, error) {
		return c.eth.BalanceAt(ctx, account, nil)
	})
	if err != nil {
		return nil, err
	}

	c.cache.Set(key, balance)
	return balance, nil
}

// TokenBalance returns an ERC-20 balance, served from cache within the TTL.
func (c *Client) TokenBalance(ctx context.Context, token, account common.Address) (*big.Int, error) {
	key := token.Hex() + ":" + account.Hex()
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	erc20, _ := contractABIs()
	data, err := erc20.Pack("balanceOf", account)
	if err != nil {
		return nil, fmt.Errorf("failed to encode balanceOf: %w", err)
	}

	raw, err := withRetry(ctx, c, "token balance", func(ctx context.Context) ([]byte, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}

	out, err := erc20.Unpack("balanceOf", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf result: %w", err)
	}
	balance := abi.ConvertType(out[0], new(big.Int)).(*big.Int)

	c.cache.Set(key, balance)
	return balance, nil
}

// TokenMeta reads an ERC-20 token's symbol and decimals. Tokens that fail
// either call fall back to the configured metadata at the call site.
func (c *Client) TokenMeta(ctx context.Context, token common.Address) (string, uint8, error) {
	erc20, _ := contractABIs()

	symbolData, err := erc20.Pack("symbol")
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode symbol call: %w", err)
	}
	decimalsData, err := erc20.Pack("decimals")
	if err != nil {
		return "", 0, fmt.Errorf("failed to encode decimals call: %w", err)
	}

	rawSymbol, err := withRetry(ctx, c, "token symbol", func(ctx context.Context) ([]byte, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: symbolData}, nil)
	})
	if err != nil {
		return "", 0, err
	}
	rawDecimals, err := withRetry(ctx, c, "token decimals", func(ctx context.Context) ([]byte, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &token, Data: decimalsData}, nil)
	})
	if err != nil {
		return "", 0, err
	}

	symbolOut, err := erc20.Unpack("symbol", rawSymbol)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode symbol result: %w", err)
	}
	decimalsOut, err := erc20.Unpack("decimals", rawDecimals)
	if err != nil {
		return "", 0, fmt.Errorf("failed to decode decimals result: %w", err)
	}

	symbol, _ := symbolOut[0].(string)
	decimals, _ := decimalsOut[0].(uint8)
	return symbol, decimals, nil
}

// InvalidateBalances drops cached balances for the account, typically right
// after it sent a transaction.
func (c *Client) InvalidateBalances(account common.Address) {
	c.cache.InvalidateAccount(account.Hex())
}

// SuggestGasPrice returns the node's suggested price in wei.
func (c *Client) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return withRetry(ctx, c, "gas price", func(ctx context.Context) (*big.Int, error) {
		return c.eth.SuggestGasPrice(ctx)
	})
}

// BaseFee returns the head block's base fee, or nil on pre-London chains.
func (c *Client) BaseFee(ctx context.Context) (*big.Int, error) {
	header, err := withRetry(ctx, c, "head header", func(ctx context.Context) (*types.Header, error) {
		return c.eth.HeaderByNumber(ctx, nil)
	})
	if err != nil {
		return nil, err
	}
	return header.BaseFee, nil
}

// SendETH signs and broadcasts a native transfer, returning the transaction
// hash.
func (c *Client) SendETH(ctx context.Context, signer wallet.Signer, to common.Address, amount *big.Int) (common.Hash, error) {
	return c.send(ctx, signer, &to, amount, nil, ethTransferGas)
}

// SendToken signs and broadcasts an ERC-20 transfer.
func (c *Client) SendToken(ctx context.Context, signer wallet.Signer, token, to common.Address, amount *big.Int) (common.Hash, error) {
	erc20, _ := contractABIs()
	data, err := erc20.Pack("transfer", to, amount)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode transfer: %w", err)
	}
	return c.send(ctx, signer, &token, new(big.Int), data, 0)
}

// CounterValue reads the demo counter's current value.
func (c *Client) CounterValue(ctx context.Context, counter common.Address) (*big.Int, error) {
	_, counterABI := contractABIs()
	data, err := counterABI.Pack("value")
	if err != nil {
		return nil, fmt.Errorf("failed to encode value call: %w", err)
	}

	raw, err := withRetry(ctx, c, "counter value", func(ctx context.Context) ([]byte, error) {
		return c.eth.CallContract(ctx, ethereum.CallMsg{To: &counter, Data: data}, nil)
	})
	if err != nil {
		return nil, err
	}

	out, err := counterABI.Unpack("value", raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode value result: %w", err)
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// IncrementCounter submits an increment write to the demo counter.
func (c *Client) IncrementCounter(ctx context.Context, signer wallet.Signer, counter common.Address) (common.Hash, error) {
	return c.counterWrite(ctx, signer, counter, "increment")
}

// DecrementCounter submits a decrement write. The contract reverts with
// "Counter: underflow" when the value is already zero.
func (c *Client) DecrementCounter(ctx context.Context, signer wallet.Signer, counter common.Address) (common.Hash, error) {
	return c.counterWrite(ctx, signer, counter, "decrement")
}

func (c *Client) counterWrite(ctx context.Context, signer wallet.Signer, counter common.Address, method string) (common.Hash, error) {
	_, counterABI := contractABIs()
	data, err := counterABI.Pack(method)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode %s: %w", method, err)
	}
	return c.send(ctx, signer, &counter, new(big.Int), data, 0)
}

func (c *Client) send(ctx context.Context, signer wallet.Signer, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, error) {
	from, ok := signer.Address()
	if !ok {
		return common.Hash{}, errors.New("connector has no account to sign with")
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	if gasLimit == 0 {
		gasLimit, err = c.eth.EstimateGas(ctx, ethereum.CallMsg{
			From:  from,
			To:    to,
			Value: value,
			Data:  data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("gas estimation failed: %w", err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       to,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})

	signed, err := signer.SignTx(ctx, new(big.Int).SetUint64(c.cfg.ChainID), tx)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.eth.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	hash := signed.Hash()
	c.mu.Lock()
	c.pending[hash] = pendingTx{tx: signed, from: from}
	c.mu.Unlock()

	c.cache.InvalidateAccount(from.Hex())
	c.log.Info("transaction broadcast",
		zap.String("hash", hash.Hex()),
		zap.String("from", from.Hex()),
		zap.Uint64("nonce", nonce))

	return hash, nil
}

// WaitForReceipt polls for the transaction's receipt until inclusion or the
// configured wait timeout. A reverted transaction is returned as an error
// carrying the extracted revert reason when the node exposes one.
func (c *Client) WaitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.TxWaitTimeout)
	defer cancel()

	defer func() {
		c.mu.Lock()
		delete(c.pending, hash)
		c.mu.Unlock()
	}()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.eth.TransactionReceipt(ctx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return nil, c.revertError(ctx, hash, receipt)
			}
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.log.Debug("receipt poll failed", zap.String("hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("network timeout waiting for transaction %s", hash.Hex())
		case <-ticker.C:
		}
	}
}

// revertError re-executes the failed transaction at its block to recover the
// revert reason, falling back to a bare revert error when the node does not
// return revert data.
func (c *Client) revertError(ctx context.Context, hash common.Hash, receipt *types.Receipt) error {
	c.mu.RLock()
	p, ok := c.pending[hash]
	c.mu.RUnlock()
	if !ok {
		return errors.New("execution reverted")
	}

	msg := ethereum.CallMsg{
		From:     p.from,
		To:       p.tx.To(),
		Gas:      p.tx.Gas(),
		GasPrice: p.tx.GasPrice(),
		Value:    p.tx.Value(),
		Data:     p.tx.Data(),
	}

	_, err := c.eth.CallContract(ctx, msg, receipt.BlockNumber)
	if reason := extractRevertReason(err); reason != "" {
		return fmt.Errorf("execution reverted: reason=%q", reason)
	}
	return errors.New("execution reverted")
}

func extractRevertReason(err error) string {
	if err == nil {
		return ""
	}

	var dataErr rpc.DataError
	if !errors.As(err, &dataErr) {
		return ""
	}

	encoded, ok := dataErr.ErrorData().(string)
	if !ok {
		return ""
	}

	raw, err := hexutil.Decode(encoded)
	if err != nil {
		return ""
	}

	reason, err := abi.UnpackRevert(raw)
	if err != nil {
		return ""
	}
	return reason
}

// WatchCounterChanged polls for ValueChanged logs from the demo counter and
// streams them until ctx is cancelled. The sequence is lazy, unbounded, and
// not restartable; callers subscribe again after cancelling.
func (c *Client) WatchCounterChanged(ctx context.Context, counter common.Address) (<-chan CounterEvent, error) {
	_, counterABI := contractABIs()
	event := counterABI.Events["ValueChanged"]

	start, err := c.eth.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch head block: %w", err)
	}

	events := make(chan CounterEvent, 16)

	go func() {
		defer close(events)

		ticker := time.NewTicker(c.cfg.PollInterval)
		defer ticker.Stop()

		next := start + 1
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			head, err := c.eth.BlockNumber(ctx)
			if err != nil || head < next {
				continue
			}

			logs, err := c.eth.FilterLogs(ctx, ethereum.FilterQuery{
				FromBlock: new(big.Int).SetUint64(next),
				ToBlock:   new(big.Int).SetUint64(head),
				Addresses: []common.Address{counter},
				Topics:    [][]common.Hash{{event.ID}},
			})
			if err != nil {
				c.log.Debug("event poll failed", zap.Error(err))
				continue
			}

			for _, entry := range logs {
				out, err := counterABI.Unpack("ValueChanged", entry.Data)
				if err != nil || len(out) == 0 {
					continue
				}
				value := abi.ConvertType(out[0], new(big.Int)).(*big.Int)

				select {
				case events <- CounterEvent{
					NewValue:    value,
					TxHash:      entry.TxHash.Hex(),
					BlockNumber: entry.BlockNumber,
				}:
				case <-ctx.Done():
					return
				}
			}

			next = head + 1
		}
	}()

	return events, nil
}

// withRetry wraps read calls with bounded retries for transient RPC noise.
func withRetry[T any](ctx context.Context, c *Client, label string, call func(context.Context) (T, error)) (T, error) {
	var result T

	err := retry.Do(
		func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
			defer cancel()

			var err error
			result, err = call(callCtx)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(DefaultRetryAttempts),
		retry.Delay(500*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return result, fmt.Errorf("failed to fetch %s: %w", label, err)
	}

	return result, nil
}
