package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"risk-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for recovery and replay.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadFillsAfter returns fills with RowID > afterRowID for one account,
// ordered by RowID ascending for correct replay order.
func (r *Reader) ReadFillsAfter(account string, afterRowID int64) ([]model.Fill, error) {
	rows, err := r.db.Query(`
		SELECT row_id, ts, account, exchange, contract, side, qty, price, order_id, exec_id, user, raw
		FROM fills
		WHERE account = ? AND row_id > ?
		ORDER BY row_id ASC
	`, account, afterRowID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills: %w", err)
	}
	defer rows.Close()

	var fills []model.Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

// ReadFillsBetween returns fills in [fromTS, toTS) (unix millis) for one
// account, ordered by timestamp. Used by the replay tool to reconstruct a
// single accounting period.
func (r *Reader) ReadFillsBetween(account string, fromTS, toTS int64) ([]model.Fill, error) {
	rows, err := r.db.Query(`
		SELECT row_id, ts, account, exchange, contract, side, qty, price, order_id, exec_id, user, raw
		FROM fills
		WHERE account = ? AND ts >= ? AND ts < ?
		ORDER BY ts ASC, row_id ASC
	`, account, fromTS, toTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query fills by ts: %w", err)
	}
	defer rows.Close()

	var fills []model.Fill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, err
		}
		fills = append(fills, f)
	}
	return fills, rows.Err()
}

func scanFill(rows *sql.Rows) (model.Fill, error) {
	var (
		f       model.Fill
		tsMilli int64
		orderID sql.NullString
		user    sql.NullString
		raw     sql.NullString
	)
	if err := rows.Scan(&f.RowID, &tsMilli, &f.Account, &f.Exchange, &f.Contract,
		&f.Side, &f.Qty, &f.Price, &orderID, &f.ExecID, &user, &raw); err != nil {
		return model.Fill{}, fmt.Errorf("sqlite scan fill: %w", err)
	}
	f.TS = time.UnixMilli(tsMilli).UTC()
	f.OrderID = orderID.String
	f.User = user.String
	if raw.Valid && raw.String != "" {
		f.Raw = json.RawMessage(raw.String)
	}
	return f, nil
}

// ReadLatestRiskResult loads the most recent published risk update for one
// instrument. Returns nil, nil when none exists.
func (r *Reader) ReadLatestRiskResult(exchange, contract string) (*model.RiskUpdate, error) {
	var data string
	err := r.db.QueryRow(`
		SELECT data FROM risk_results
		WHERE exchange = ? AND contract = ?
		ORDER BY created_at DESC
		LIMIT 1
	`, exchange, contract).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // no result yet
		}
		return nil, fmt.Errorf("sqlite read risk result: %w", err)
	}

	var u model.RiskUpdate
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return nil, fmt.Errorf("unmarshal risk result: %w", err)
	}

	return &u, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
