package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
)

// TxFunc runs inside a Firestore transaction. It may run more than once on contention, so it
// must not have side effects outside tx.
type TxFunc func(ctx context.Context, tx *firestore.Transaction) error

// TxOption customises a transaction.
type TxOption func(*txSettings)

type txSettings struct {
	op       string
	attempts int
	timeout  time.Duration
	readOnly bool
}

func defaultTxSettings() txSettings {
	return txSettings{op: "transaction", attempts: 5, timeout: 15 * time.Second}
}

// WithTxOperation names the transaction in wrapped errors, e.g. "templates.views".
func WithTxOperation(op string) TxOption {
	return func(s *txSettings) {
		if op != "" {
			s.op = op
		}
	}
}

// WithTxAttempts overrides the retry attempts.
func WithTxAttempts(attempts int) TxOption {
	return func(s *txSettings) {
		if attempts > 0 {
			s.attempts = attempts
		}
	}
}

// WithTxTimeout caps the transaction duration unless the caller's deadline is sooner.
func WithTxTimeout(timeout time.Duration) TxOption {
	return func(s *txSettings) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// WithTxReadOnly runs a read-only transaction; writes inside fn fail.
func WithTxReadOnly() TxOption {
	return func(s *txSettings) { s.readOnly = true }
}

// RunTransaction executes fn, retrying on contention, and classifies the resulting error.
func RunTransaction(ctx context.Context, client *firestore.Client, fn TxFunc, opts ...TxOption) error {
	switch {
	case client == nil:
		return errors.New("firestore: client is nil")
	case fn == nil:
		return errors.New("firestore: transaction function is nil")
	}

	s := defaultTxSettings()
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}

	deadline, hasDeadline := ctx.Deadline()
	if !hasDeadline || time.Until(deadline) > s.timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	txOpts := []firestore.TransactionOption{firestore.MaxAttempts(s.attempts)}
	if s.readOnly {
		txOpts = append(txOpts, firestore.ReadOnly)
	}
	return WrapError(s.op, client.RunTransaction(ctx, fn, txOpts...))
}
