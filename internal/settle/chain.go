package settle

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/sniperlabs/snipercore/internal/domain"
)

// chainTxGasLimit covers a settlement call with a JSON order payload.
const chainTxGasLimit = 200_000

// ChainSettler submits orders to a settlement contract over JSON-RPC and
// waits for the transaction to be mined. It is selected by trading.mode
// "live".
type ChainSettler struct {
	client     *ethclient.Client
	key        *ecdsa.PrivateKey
	from       common.Address
	settlement common.Address
	chainID    *big.Int
	logger     *slog.Logger
}

// NewChainSettler dials the RPC endpoint and verifies the chain id matches
// the configured one before any order can be submitted.
func NewChainSettler(ctx context.Context, rpcURL, privateKeyHex, settlementAddr string, chainID int64, logger *slog.Logger) (*ChainSettler, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("settle: dialing %s: %w", rpcURL, err)
	}

	key, err := ethcrypto.HexToECDSA(privateKeyHex)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("settle: parsing private key: %w", err)
	}

	want := big.NewInt(chainID)
	got, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("settle: fetching chain id: %w", err)
	}
	if got.Cmp(want) != 0 {
		client.Close()
		return nil, fmt.Errorf("settle: chain id mismatch: node reports %s, configured %s", got, want)
	}

	return &ChainSettler{
		client:     client,
		key:        key,
		from:       ethcrypto.PubkeyToAddress(key.PublicKey),
		settlement: common.HexToAddress(settlementAddr),
		chainID:    want,
		logger:     logger.With(slog.String("component", "chain_settler")),
	}, nil
}

// Settle signs and sends a settlement transaction carrying the order as
// calldata, then blocks until it is mined or the context expires. The fill
// price is the order's reference price; the contract does not report one.
func (c *ChainSettler) Settle(ctx context.Context, order domain.ExecutionOrder) (domain.Settlement, error) {
	payload, err := json.Marshal(order)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: encoding order %s: %w", order.ID, err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.from)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: fetching nonce: %w", err)
	}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: fetching gas price: %w", err)
	}

	tx := types.NewTransaction(nonce, c.settlement, big.NewInt(0), chainTxGasLimit, gasPrice, payload)
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: signing tx for order %s: %w", order.ID, err)
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: sending tx %s: %w", signed.Hash(), err)
	}

	c.logger.InfoContext(ctx, "settlement tx submitted",
		slog.String("order_id", order.ID),
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)

	receipt, err := bind.WaitMined(ctx, c.client, signed)
	if err != nil {
		return domain.Settlement{}, fmt.Errorf("settle: waiting for tx %s: %w", signed.Hash(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return domain.Settlement{}, fmt.Errorf("settle: tx %s reverted", signed.Hash())
	}

	return domain.Settlement{
		TxSignature: signed.Hash().Hex(),
		FilledPrice: order.LimitPrice,
		Simulated:   false,
	}, nil
}

// Close releases the RPC connection.
func (c *ChainSettler) Close() {
	c.client.Close()
}
