package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the monitor loop from concrete storage
// implementations (Redis, SQLite). Each implementation satisfies one or
// more of these interfaces.

// FillWriter persists gateway fills.
type FillWriter interface {
	// Run reads fills from fillCh and writes them in batches.
	// Blocks until ctx is cancelled or fillCh is closed.
	Run(ctx context.Context, fillCh <-chan Fill)

	// Close releases underlying resources.
	Close() error
}

// FillReader reads persisted fills for recovery and replay.
type FillReader interface {
	// ReadFillsAfter returns fills with RowID > afterRowID for one account,
	// in RowID order.
	ReadFillsAfter(account string, afterRowID int64) ([]Fill, error)

	// ReadFillsBetween returns fills for one account with exchange timestamps
	// in [fromTS, toTS] unix millis, oldest first.
	ReadFillsBetween(account string, fromTS, toTS int64) ([]Fill, error)

	// Close releases underlying resources.
	Close() error
}

// ResultWriter publishes risk and position updates to live consumers.
type ResultWriter interface {
	// WriteRiskUpdate publishes one risk computation result.
	WriteRiskUpdate(ctx context.Context, u RiskUpdate)

	// WritePositionUpdate publishes one position change.
	WritePositionUpdate(ctx context.Context, u PositionUpdate)

	// Close releases underlying resources.
	Close() error
}

// CheckpointStore records monitor progress so a restart can resume from
// the last processed fill instead of replaying the whole day. The cursor is
// the newest processed fill timestamp in unix millis.
type CheckpointStore interface {
	// SaveCheckpoint persists the progress cursor for an account.
	SaveCheckpoint(ctx context.Context, account string, cursor int64) error

	// LoadCheckpoint returns the saved cursor, or 0 if none exists.
	LoadCheckpoint(ctx context.Context, account string) (int64, error)
}

// FillSource streams new fills from the execution gateway.
type FillSource interface {
	// Fills returns gateway fills executed after minTS (unix millis).
	Fills(ctx context.Context, minTS int64) ([]Fill, error)
}
