package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/meetwire/meetwire/internal/store"
)

// Schema creates the messages table. Applied on startup; idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room TEXT NOT NULL,
	identity TEXT NOT NULL,
	kind TEXT NOT NULL,
	content TEXT NOT NULL,
	original_name TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room, id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(Schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Useful for tests to apply a custom schema.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveMessage persists a message and fills in its assigned ID.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (room, identity, kind, content, original_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query,
		msg.Room, msg.Identity, msg.Kind, msg.Content, msg.OriginalName, msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	return nil
}

// ListRoomMessages retrieves a room's messages in chronological order.
func (s *SQLiteStore) ListRoomMessages(ctx context.Context, room string) ([]*store.Message, error) {
	query := `
		SELECT id, room, identity, kind, content, original_name, created_at
		FROM messages
		WHERE room = ?
		ORDER BY id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, room)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.Message
	for rows.Next() {
		var msg store.Message
		if err := rows.Scan(&msg.ID, &msg.Room, &msg.Identity, &msg.Kind,
			&msg.Content, &msg.OriginalName, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	return messages, rows.Err()
}

// DeleteMessage removes one message, verifying it belongs to identity.
func (s *SQLiteStore) DeleteMessage(ctx context.Context, id int64, identity string) error {
	query := `DELETE FROM messages WHERE id = ? AND identity = ?`
	result, err := s.db.ExecContext(ctx, query, id, identity)
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ClearRoom removes every message stored for a room.
func (s *SQLiteStore) ClearRoom(ctx context.Context, room string) error {
	query := `DELETE FROM messages WHERE room = ?`
	if _, err := s.db.ExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("clear room: %w", err)
	}
	return nil
}

// Ensure SQLiteStore implements store.Store
var _ store.Store = (*SQLiteStore)(nil)
