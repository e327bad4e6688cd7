// Package tracker follows submitted source-chain transactions until they are
// mined and reports the outcome back to the owning session.
package tracker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/RaghavSood/quoteflow/db"
)

const (
	StatusSuccess  = "success"
	StatusReverted = "reverted"

	DefaultInterval = 15 * time.Second
)

// ReceiptSource is the subset of ethclient.Client the tracker needs.
type ReceiptSource interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Store is the persistence the tracker needs; *db.Store satisfies it.
type Store interface {
	InsertTransaction(ctx context.Context, arg db.InsertTransactionParams) (db.Transaction, error)
	ListPendingTransactions(ctx context.Context) ([]db.Transaction, error)
	UpdateTransactionStatus(ctx context.Context, arg db.UpdateTransactionStatusParams) error
}

// SettledFunc is called once per transaction when its receipt is found.
type SettledFunc func(tx db.Transaction, status string)

type Tracker struct {
	store     Store
	rpcs      map[uint64]ReceiptSource
	interval  time.Duration
	onSettled SettledFunc
	wake      chan struct{}
}

func New(store Store, rpcs map[uint64]ReceiptSource, interval time.Duration, onSettled SettledFunc) *Tracker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Tracker{
		store:     store,
		rpcs:      rpcs,
		interval:  interval,
		onSettled: onSettled,
		wake:      make(chan struct{}, 1),
	}
}

// Track starts following hash on chainID for a session.
func (t *Tracker) Track(ctx context.Context, sessionID string, chainID uint64, hash common.Hash, provider string) (db.Transaction, error) {
	if _, ok := t.rpcs[chainID]; !ok {
		return db.Transaction{}, fmt.Errorf("no RPC configured for chain %d", chainID)
	}
	tx, err := t.store.InsertTransaction(ctx, db.InsertTransactionParams{
		SessionID: sessionID,
		ChainID:   int64(chainID),
		TxHash:    hash.Hex(),
		Provider:  provider,
	})
	if err != nil {
		return db.Transaction{}, fmt.Errorf("recording transaction: %w", err)
	}
	select {
	case t.wake <- struct{}{}:
	default:
	}
	return tx, nil
}

func (t *Tracker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	// Run once immediately on start
	t.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Tracker stopped")
			return
		case <-ticker.C:
			t.poll(ctx)
		case <-t.wake:
			t.poll(ctx)
		}
	}
}

func (t *Tracker) poll(ctx context.Context) {
	pending, err := t.store.ListPendingTransactions(ctx)
	if err != nil {
		log.Printf("Tracker: error listing pending transactions: %v", err)
		return
	}

	for _, tx := range pending {
		select {
		case <-ctx.Done():
			return
		default:
		}

		rpc, ok := t.rpcs[uint64(tx.ChainID)]
		if !ok {
			continue
		}

		receipt, err := rpc.TransactionReceipt(ctx, common.HexToHash(tx.TxHash))
		if errors.Is(err, ethereum.NotFound) {
			continue
		}
		if err != nil {
			log.Printf("Tracker: error checking %s: %v", tx.TxHash, err)
			continue
		}

		status := StatusReverted
		if receipt.Status == types.ReceiptStatusSuccessful {
			status = StatusSuccess
		}

		params := db.UpdateTransactionStatusParams{Status: status, ID: tx.ID}
		if receipt.BlockNumber != nil {
			params.BlockNumber = sql.NullInt64{Int64: receipt.BlockNumber.Int64(), Valid: true}
		}
		if err := t.store.UpdateTransactionStatus(ctx, params); err != nil {
			log.Printf("Tracker: error updating %s: %v", tx.TxHash, err)
			continue
		}

		log.Printf("Tracker: %s on chain %d %s", tx.TxHash, tx.ChainID, status)
		tx.Status = status
		if t.onSettled != nil {
			t.onSettled(tx, status)
		}
	}
}
