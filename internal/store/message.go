package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/matheus3301/zpw/internal/message"
)

// TrackMessage records a sent message (idempotent on global_msg_id).
func (db *DB) TrackMessage(m *Message) error {
	if m.GlobalMsgID == "" || m.CliMsgID == "" || m.ThreadID == "" {
		return fmt.Errorf("track message: thread, global and client ids are required")
	}
	sentAt := m.SentAt
	if sentAt == 0 {
		sentAt = time.Now().UnixMilli()
	}
	_, err := db.Exec(`
		INSERT INTO messages (thread_id, kind, global_msg_id, cli_msg_id, body, status, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(global_msg_id) DO UPDATE SET
			thread_id = excluded.thread_id,
			kind = excluded.kind,
			cli_msg_id = excluded.cli_msg_id,
			body = excluded.body,
			sent_at = excluded.sent_at`,
		m.ThreadID, m.Kind.String(), m.GlobalMsgID, m.CliMsgID, m.Body, StatusSent, sentAt, time.Now().UnixMilli())
	return err
}

// GetMessage returns a tracked message by its global id, or nil if unknown.
func (db *DB) GetMessage(globalMsgID string) (*Message, error) {
	row := db.QueryRow(`
		SELECT id, thread_id, kind, global_msg_id, cli_msg_id, body, status, sent_at, undone_at
		FROM messages WHERE global_msg_id = ?`, globalMsgID)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessages returns tracked messages, newest first. An empty threadID
// lists every thread.
func (db *DB) ListMessages(threadID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `
		SELECT id, thread_id, kind, global_msg_id, cli_msg_id, body, status, sent_at, undone_at
		FROM messages`
	args := []any{}
	if threadID != "" {
		q += " WHERE thread_id = ?"
		args = append(args, threadID)
	}
	q += " ORDER BY sent_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, rows.Err()
}

// MarkMessageUndone flags a tracked message as retracted. A message that is
// already undone keeps its first undone_at.
func (db *DB) MarkMessageUndone(globalMsgID string, at int64) error {
	_, err := db.Exec(`UPDATE messages SET status = ?, undone_at = ? WHERE global_msg_id = ? AND status != ?`,
		StatusUndone, at, globalMsgID, StatusUndone)
	return err
}

// MessageCount returns the total number of tracked messages.
func (db *DB) MessageCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM messages`).Scan(&count)
	return count, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMessage(s scanner) (*Message, error) {
	var (
		m    Message
		kind string
	)
	if err := s.Scan(&m.ID, &m.ThreadID, &kind, &m.GlobalMsgID, &m.CliMsgID, &m.Body, &m.Status, &m.SentAt, &m.UndoneAt); err != nil {
		return nil, err
	}
	k, err := message.ParseKind(kind)
	if err != nil {
		return nil, err
	}
	m.Kind = k
	return &m, nil
}
