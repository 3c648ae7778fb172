package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// TokenLedger accumulates consumption units against a per-conversation and a
// global counter. Commits add to in-memory pending totals and a debounced
// flush persists them additively, so rapid usage updates within one stream
// coalesce into few writes without losing any amount. The persisted update
// is `total = total + amount` in SQL, never an overwrite of a fetched total.
type TokenLedger struct {
	store    Store
	logger   *slog.Logger
	interval time.Duration

	mu             sync.Mutex
	pending        map[string]int
	pendingAccount int
	timer          *time.Timer
}

// NewTokenLedger creates a ledger flushing at most once per interval.
func NewTokenLedger(store Store, interval time.Duration, logger *slog.Logger) *TokenLedger {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &TokenLedger{
		store:    store,
		logger:   logger.With("component", "token_ledger"),
		interval: interval,
		pending:  make(map[string]int),
	}
}

// Commit records an amount of consumption for a conversation. Zero is a
// no-op; negative amounts are rejected.
func (l *TokenLedger) Commit(conversationID string, amount int) {
	if amount <= 0 {
		if amount < 0 {
			l.logger.Warn("ignoring negative token amount", "conversation_id", conversationID, "amount", amount)
		}
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pending[conversationID] += amount
	l.pendingAccount += amount
	if l.timer == nil {
		l.timer = time.AfterFunc(l.interval, func() {
			l.Flush(context.Background())
		})
	}
}

// Flush persists all pending amounts now. Amounts that fail to persist stay
// pending for the next flush; nothing is dropped.
func (l *TokenLedger) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.pending
	account := l.pendingAccount
	l.pending = make(map[string]int)
	l.pendingAccount = 0
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	var firstErr error
	for conversationID, amount := range batch {
		if err := l.store.AddConversationTokens(ctx, conversationID, amount); err != nil {
			l.logger.Warn("failed to flush conversation tokens; amount kept pending",
				"conversation_id", conversationID, "amount", amount, "error", err)
			l.requeue(conversationID, amount, 0)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if account > 0 {
		if err := l.store.AddProfileTokens(ctx, account); err != nil {
			l.logger.Warn("failed to flush account tokens; amount kept pending",
				"amount", account, "error", err)
			l.requeue("", 0, account)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return firstErr
}

// Drain flushes pending amounts at teardown, guaranteeing the last committed
// values are not lost behind a pending debounce timer.
func (l *TokenLedger) Drain(ctx context.Context) error {
	if err := l.Flush(ctx); err != nil {
		return fmt.Errorf("token ledger drain: %w", err)
	}
	return nil
}

func (l *TokenLedger) requeue(conversationID string, amount, account int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if amount > 0 {
		l.pending[conversationID] += amount
	}
	l.pendingAccount += account
	if (len(l.pending) > 0 || l.pendingAccount > 0) && l.timer == nil {
		l.timer = time.AfterFunc(l.interval, func() {
			l.Flush(context.Background())
		})
	}
}
