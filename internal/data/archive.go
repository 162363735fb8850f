package data

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"

	_ "modernc.org/sqlite"
)

// archiveRepo implements the message archive on sqlite.
type archiveRepo struct {
	db *sql.DB
}

// NewArchiveRepo opens (or creates) the archive database at dbPath.
func NewArchiveRepo(dbPath string) (repo.ArchiveRepo, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			chat_id TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			direction TEXT NOT NULL,
			sender_id TEXT NOT NULL DEFAULT '',
			sender_name TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			media_mimetype TEXT NOT NULL DEFAULT '',
			media_filename TEXT NOT NULL DEFAULT '',
			media_size INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_messages_chat_ts ON messages(chat_id, timestamp)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	return &archiveRepo{db: db}, nil
}

// RecordMessage stores a message. Re-recording the same id is a no-op, so
// history refetches do not duplicate rows. Media payload bytes are not
// stored, only their metadata.
func (r *archiveRepo) RecordMessage(ctx context.Context, msg *domain.Message) error {
	var mime, filename string
	var size int
	if msg.Media != nil {
		mime = msg.Media.MimeType
		filename = msg.Media.Filename
		size = msg.Media.SizeBytes
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO messages (id, chat_id, timestamp, direction, sender_id, sender_name, body, media_mimetype, media_filename, media_size)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		msg.ID,
		msg.ChatID,
		msg.TimestampSec,
		string(msg.Direction),
		msg.SenderID,
		msg.SenderName,
		msg.Body,
		mime,
		filename,
		size,
	)
	if err != nil {
		return fmt.Errorf("failed to record message: %w", err)
	}
	return nil
}

// GetMessage returns a recorded message, or nil when the id is unknown.
func (r *archiveRepo) GetMessage(ctx context.Context, messageID string) (*domain.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, chat_id, timestamp, direction, sender_id, sender_name, body, media_mimetype, media_filename, media_size
		FROM messages
		WHERE id = ?
	`, messageID)

	var msg domain.Message
	var direction, mime, filename string
	var size int
	err := row.Scan(&msg.ID, &msg.ChatID, &msg.TimestampSec, &direction, &msg.SenderID, &msg.SenderName, &msg.Body, &mime, &filename, &size)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query message: %w", err)
	}

	msg.Direction = domain.Direction(direction)
	if mime != "" {
		msg.Media = &domain.MediaRef{MimeType: mime, Filename: filename, SizeBytes: size}
	}
	return &msg, nil
}

// ListChatMedia returns a chat's recorded media entries, newest first.
func (r *archiveRepo) ListChatMedia(ctx context.Context, chatID string, limit int) ([]repo.ArchivedMedia, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, chat_id, timestamp, direction, media_mimetype, media_filename, media_size
		FROM messages
		WHERE chat_id = ? AND media_mimetype != ''
		ORDER BY timestamp DESC
		LIMIT ?
	`, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat media: %w", err)
	}
	defer rows.Close()

	var entries []repo.ArchivedMedia
	for rows.Next() {
		var e repo.ArchivedMedia
		var direction string
		if err := rows.Scan(&e.MessageID, &e.ChatID, &e.TimestampSec, &direction, &e.MimeType, &e.Filename, &e.SizeBytes); err != nil {
			return nil, fmt.Errorf("failed to scan media entry: %w", err)
		}
		e.Direction = domain.Direction(direction)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Stats returns archive-wide counters.
func (r *archiveRepo) Stats(ctx context.Context) (repo.ArchiveStats, error) {
	var stats repo.ArchiveStats
	row := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN media_mimetype != '' THEN 1 END) FROM messages
	`)
	if err := row.Scan(&stats.Messages, &stats.MediaMessages); err != nil {
		return stats, fmt.Errorf("failed to query stats: %w", err)
	}
	return stats, nil
}

// Close closes the database connection.
func (r *archiveRepo) Close() error {
	return r.db.Close()
}
