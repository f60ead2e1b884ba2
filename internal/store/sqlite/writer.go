package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"risk-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/fills.db"
}

// Writer is a single-goroutine SQLite writer with transaction batching.
// It persists the fill audit log and published risk results.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	// Create table if not exists
	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS fills (
			row_id   INTEGER PRIMARY KEY AUTOINCREMENT,
			ts       INTEGER NOT NULL,
			account  TEXT    NOT NULL,
			exchange TEXT    NOT NULL,
			contract TEXT    NOT NULL,
			side     TEXT    NOT NULL,
			qty      INTEGER NOT NULL,
			price    REAL    NOT NULL,
			order_id TEXT,
			exec_id  TEXT    NOT NULL UNIQUE,
			user     TEXT,
			raw      TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_fills_account_ts ON fills (account, ts);

		CREATE TABLE IF NOT EXISTS risk_results (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			account    TEXT    NOT NULL,
			exchange   TEXT    NOT NULL,
			contract   TEXT    NOT NULL,
			data       TEXT    NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);
	`)
	return err
}

// Run reads fills from fillCh and inserts them in batched transactions.
// Flushes every batchSize fills OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or fillCh is closed.
func (w *Writer) Run(ctx context.Context, fillCh <-chan model.Fill) {
	batch := make([]model.Fill, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := w.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d fills in %v", len(batch), time.Since(start))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case fill, ok := <-fillCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, fill)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// insertBatch inserts a batch of fills in a single transaction.
// exec_id is UNIQUE, so a re-polled fill is silently ignored rather than
// double-counted.
func (w *Writer) insertBatch(fills []model.Fill) error {
	tx, err := w.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO fills (ts, account, exchange, contract, side, qty, price, order_id, exec_id, user, raw)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, f := range fills {
		_, err := stmt.Exec(f.TS.UnixMilli(), f.Account, f.Exchange, f.Contract,
			f.Side, f.Qty, f.Price, f.OrderID, f.ExecID, f.User, string(f.Raw))
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// GetLastFillTS returns the newest stored fill timestamp (unix millis) for an
// account. Returns 0 if no fills exist.
func (w *Writer) GetLastFillTS(account string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRow(
		`SELECT MAX(ts) FROM fills WHERE account = ?`,
		account,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// SaveRiskResult appends a published risk update to the audit table and
// prunes old rows per instrument, keeping the most recent 1000.
func (w *Writer) SaveRiskResult(u *model.RiskUpdate) error {
	_, err := w.db.Exec(
		`INSERT INTO risk_results (account, exchange, contract, data) VALUES (?, ?, ?, ?)`,
		u.Account, u.Exchange, u.Contract, string(u.JSON()),
	)
	if err != nil {
		return fmt.Errorf("sqlite insert risk result: %w", err)
	}

	_, err = w.db.Exec(`
		DELETE FROM risk_results
		WHERE exchange = ? AND contract = ?
		  AND id NOT IN (
			SELECT id FROM risk_results
			WHERE exchange = ? AND contract = ?
			ORDER BY created_at DESC LIMIT 1000
		  )
	`, u.Exchange, u.Contract, u.Exchange, u.Contract)
	if err != nil {
		log.Printf("[sqlite] prune risk results warning: %v", err)
	}

	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
