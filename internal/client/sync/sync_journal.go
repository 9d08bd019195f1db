package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bundlesync/bundlesync/internal/db"
	"github.com/jmoiron/sqlx"
)

const (
	historySchema = `
CREATE TABLE IF NOT EXISTS sync_rounds (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL, -- RFC3339
    finished_at TEXT NOT NULL,
    state TEXT NOT NULL,
    degraded INTEGER NOT NULL DEFAULT 0,
    local_tag TEXT NOT NULL DEFAULT '',
    remote_tag TEXT NOT NULL DEFAULT '',
    committed_tag TEXT NOT NULL DEFAULT '',
    planned INTEGER NOT NULL DEFAULT 0,
    downloaded INTEGER NOT NULL DEFAULT 0,
    adopted INTEGER NOT NULL DEFAULT 0,
    failed INTEGER NOT NULL DEFAULT 0,
    removed INTEGER NOT NULL DEFAULT 0,
    bytes INTEGER NOT NULL DEFAULT 0,
    error TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_rounds_state ON sync_rounds(state);
`
	// rounds kept after each insert
	historyKeep = 500
)

var ErrHistoryNotOpen = errors.New("sync history not open")

// HistoryEntry is one recorded round
type HistoryEntry struct {
	ID           string    `db:"id" json:"id"`
	StartedAt    time.Time `db:"-" json:"startedAt"`
	FinishedAt   time.Time `db:"-" json:"finishedAt"`
	State        State     `db:"state" json:"state"`
	Degraded     bool      `db:"degraded" json:"degraded"`
	LocalTag     string    `db:"local_tag" json:"localTag"`
	RemoteTag    string    `db:"remote_tag" json:"remoteTag"`
	CommittedTag string    `db:"committed_tag" json:"committedTag"`
	Planned      int       `db:"planned" json:"planned"`
	Downloaded   int       `db:"downloaded" json:"downloaded"`
	Adopted      int       `db:"adopted" json:"adopted"`
	Failed       int       `db:"failed" json:"failed"`
	Removed      int       `db:"removed" json:"removed"`
	Bytes        int64     `db:"bytes" json:"bytes"`
	Error        string    `db:"error" json:"error,omitempty"`
}

// dbHistoryEntry is the row shape, times are stored as TEXT
type dbHistoryEntry struct {
	HistoryEntry
	StartedAt  string `db:"started_at"`
	FinishedAt string `db:"finished_at"`
}

// History is the persistent log of sync rounds
type History struct {
	db     *sqlx.DB
	dbPath string
}

func NewHistory(dbPath string) *History {
	return &History{dbPath: dbPath}
}

func (h *History) Open() error {
	if h.db != nil {
		return fmt.Errorf("sync history already open")
	}

	conn, err := db.NewSqliteDB(
		db.WithPath(h.dbPath),
		db.WithMaxOpenConns(1),
		db.WithSchema(historySchema),
	)
	if err != nil {
		return fmt.Errorf("open sync history: %w", err)
	}

	h.db = conn
	return nil
}

func (h *History) Close() error {
	if h.db == nil {
		return ErrHistoryNotOpen
	}
	err := h.db.Close()
	h.db = nil
	if err != nil {
		return fmt.Errorf("close sync history: %w", err)
	}
	slog.Debug("sync history closed")
	return nil
}

// Record stores a finished round and trims old rows
func (h *History) Record(res *Result) error {
	if h.db == nil {
		return ErrHistoryNotOpen
	}

	row := dbHistoryEntry{
		HistoryEntry: HistoryEntry{
			ID:           res.ID,
			State:        res.State,
			Degraded:     res.Degraded,
			LocalTag:     res.LocalTag.String(),
			RemoteTag:    res.RemoteTag.String(),
			CommittedTag: res.CommittedTag.String(),
			Planned:      len(res.Planned),
			Downloaded:   len(res.Downloaded),
			Adopted:      len(res.Adopted),
			Failed:       len(res.Failed),
			Removed:      len(res.Removed),
			Bytes:        res.DownloadedBytes,
			Error:        res.Error,
		},
		StartedAt:  res.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt: res.FinishedAt.UTC().Format(time.RFC3339),
	}

	query := `INSERT OR REPLACE INTO sync_rounds
		(id, started_at, finished_at, state, degraded, local_tag, remote_tag, committed_tag,
		 planned, downloaded, adopted, failed, removed, bytes, error)
		VALUES
		(:id, :started_at, :finished_at, :state, :degraded, :local_tag, :remote_tag, :committed_tag,
		 :planned, :downloaded, :adopted, :failed, :removed, :bytes, :error)`
	if _, err := h.db.NamedExec(query, row); err != nil {
		return fmt.Errorf("record round %s: %w", res.ID, err)
	}

	_, err := h.db.Exec(`DELETE FROM sync_rounds WHERE rowid NOT IN
		(SELECT rowid FROM sync_rounds ORDER BY rowid DESC LIMIT ?)`, historyKeep)
	if err != nil {
		return fmt.Errorf("trim sync history: %w", err)
	}
	return nil
}

// Recent returns up to limit rounds, newest first
func (h *History) Recent(limit int) ([]*HistoryEntry, error) {
	if h.db == nil {
		return nil, ErrHistoryNotOpen
	}
	if limit <= 0 {
		limit = historyKeep
	}

	var rows []dbHistoryEntry
	err := h.db.Select(&rows, `SELECT id, started_at, finished_at, state, degraded, local_tag, remote_tag,
		committed_tag, planned, downloaded, adopted, failed, removed, bytes, error
		FROM sync_rounds ORDER BY rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query sync history: %w", err)
	}

	entries := make([]*HistoryEntry, 0, len(rows))
	for _, row := range rows {
		entry := row.HistoryEntry
		entry.StartedAt = parseTime(row.ID, row.StartedAt)
		entry.FinishedAt = parseTime(row.ID, row.FinishedAt)
		entries = append(entries, &entry)
	}
	return entries, nil
}

func (h *History) Count() (int, error) {
	if h.db == nil {
		return 0, ErrHistoryNotOpen
	}
	var count int
	if err := h.db.Get(&count, "SELECT COUNT(*) FROM sync_rounds"); err != nil {
		return 0, fmt.Errorf("count sync history: %w", err)
	}
	return count, nil
}

func parseTime(id, value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		slog.Warn("sync history bad timestamp", "id", id, "value", value, "error", err)
	}
	return t
}
