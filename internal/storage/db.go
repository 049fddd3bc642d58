package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"gstrecon/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS documents (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  clientName TEXT NOT NULL,
  period TEXT NOT NULL,
  filename TEXT NOT NULL,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'received',
  rawRef TEXT NOT NULL,
  receivedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(hash)
);
CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);

CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  clientName TEXT NOT NULL,
  period TEXT NOT NULL,
  stage TEXT NOT NULL,
  gstr2bSource TEXT,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS invoices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  sessionId TEXT NOT NULL,
  origin TEXT NOT NULL,
  recordsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(sessionId, origin),
  FOREIGN KEY(sessionId) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS reports (
  sessionId TEXT PRIMARY KEY,
  reportJson TEXT NOT NULL,
  complianceStatus TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  FOREIGN KEY(sessionId) REFERENCES sessions(id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  traceId TEXT NOT NULL,
  sessionId TEXT,
  countsJson TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS metadata (
  key TEXT PRIMARY KEY,
  value TEXT NOT NULL,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

func (d *DB) UpsertDocument(clientName, period, filename, hash, rawRef, status string) (internal.DocumentRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO documents (clientName, period, filename, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(hash) DO UPDATE SET
  clientName=excluded.clientName,
  period=excluded.period,
  filename=excluded.filename,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, clientName, period, filename, hash, status, rawRef)
	if err != nil {
		return internal.DocumentRow{}, err
	}

	row, err := d.GetDocumentByHash(hash)
	if err != nil {
		return internal.DocumentRow{}, err
	}
	if row == nil {
		return internal.DocumentRow{}, errors.New("failed to upsert document")
	}
	return *row, nil
}

func (d *DB) GetDocumentByHash(hash string) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`
SELECT id, clientName, period, filename, hash, status, rawRef, receivedAt
FROM documents WHERE hash = ?
`, hash).Scan(
		&row.ID, &row.ClientName, &row.Period, &row.Filename, &row.Hash, &row.Status, &row.RawRef, &row.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) GetDocumentByID(id int) (*internal.DocumentRow, error) {
	var row internal.DocumentRow
	err := d.conn.QueryRow(`
SELECT id, clientName, period, filename, hash, status, rawRef, receivedAt
FROM documents WHERE id = ?
`, id).Scan(
		&row.ID, &row.ClientName, &row.Period, &row.Filename, &row.Hash, &row.Status, &row.RawRef, &row.ReceivedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListDocumentsByStatus(status string, limit int) ([]internal.DocumentRow, error) {
	rows, err := d.conn.Query(`
SELECT id, clientName, period, filename, hash, status, rawRef, receivedAt
FROM documents WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.DocumentRow
	for rows.Next() {
		var row internal.DocumentRow
		if err := rows.Scan(&row.ID, &row.ClientName, &row.Period, &row.Filename, &row.Hash, &row.Status, &row.RawRef, &row.ReceivedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateDocumentStatus(documentID int, status string) error {
	_, err := d.conn.Exec(`UPDATE documents SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, documentID)
	return err
}

// SaveSessionState mirrors the in-memory session registry so a restart can
// tell which sessions existed and where they stopped.
func (d *DB) SaveSessionState(id, clientName, period string, stage internal.SessionStage, source internal.GSTR2BSource) error {
	_, err := d.conn.Exec(`
INSERT INTO sessions (id, clientName, period, stage, gstr2bSource)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  stage=excluded.stage,
  gstr2bSource=excluded.gstr2bSource,
  updatedAt=CURRENT_TIMESTAMP
`, id, clientName, period, string(stage), string(source))
	return err
}

func (d *DB) DeleteSessionState(id string) error {
	tx, err := d.conn.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM reports WHERE sessionId = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM invoices WHERE sessionId = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return err
	}

	return tx.Commit()
}

func (d *DB) SaveInvoices(sessionID string, origin internal.InvoiceOrigin, records []internal.InvoiceRecord) error {
	recordsJSON, err := json.Marshal(records)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO invoices (sessionId, origin, recordsJson)
VALUES (?, ?, ?)
ON CONFLICT(sessionId, origin) DO UPDATE SET recordsJson=excluded.recordsJson
`, sessionID, string(origin), string(recordsJSON))
	return err
}

func (d *DB) LoadInvoices(sessionID string, origin internal.InvoiceOrigin) ([]internal.InvoiceRecord, error) {
	var recordsJSON string
	err := d.conn.QueryRow(`
SELECT recordsJson FROM invoices WHERE sessionId = ? AND origin = ?
`, sessionID, string(origin)).Scan(&recordsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var out []internal.InvoiceRecord
	if err := json.Unmarshal([]byte(recordsJSON), &out); err != nil {
		return nil, fmt.Errorf("decode invoices for session %s: %w", sessionID, err)
	}
	return out, nil
}

func (d *DB) SaveReport(sessionID string, card internal.ReportCard) error {
	reportJSON, err := json.Marshal(card)
	if err != nil {
		return err
	}
	_, err = d.conn.Exec(`
INSERT INTO reports (sessionId, reportJson, complianceStatus)
VALUES (?, ?, ?)
ON CONFLICT(sessionId) DO UPDATE SET
  reportJson=excluded.reportJson,
  complianceStatus=excluded.complianceStatus,
  createdAt=CURRENT_TIMESTAMP
`, sessionID, string(reportJSON), string(card.Summary.ComplianceStatus))
	return err
}

func (d *DB) LoadReport(sessionID string) (*internal.ReportCard, error) {
	var reportJSON string
	err := d.conn.QueryRow(`SELECT reportJson FROM reports WHERE sessionId = ?`, sessionID).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var card internal.ReportCard
	if err := json.Unmarshal([]byte(reportJSON), &card); err != nil {
		return nil, fmt.Errorf("decode report for session %s: %w", sessionID, err)
	}
	return &card, nil
}

func (d *DB) InsertRun(traceID, sessionID string, counts map[string]int) error {
	countsJSON, _ := json.Marshal(counts)
	_, err := d.conn.Exec(`INSERT INTO runs (traceId, sessionId, countsJson) VALUES (?, ?, ?)`, traceID, sessionID, string(countsJSON))
	return err
}

func (d *DB) SetMetadata(key, value string) error {
	_, err := d.conn.Exec(`
INSERT INTO metadata (key, value) VALUES (?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updatedAt = CURRENT_TIMESTAMP
`, key, value)
	return err
}

func (d *DB) GetMetadata(key string) (*string, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}
