package store

import (
	"database/sql"
	"time"
)

// QueueUndo adds an undo request for a tracked message.
func (db *DB) QueueUndo(requestID, globalMsgID string) error {
	now := time.Now().UnixMilli()
	_, err := db.Exec(`
		INSERT INTO undo_requests (request_id, global_msg_id, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		requestID, globalMsgID, UndoQueued, now, now)
	return err
}

// MarkUndoSending moves a queued request to 'sending'. It reports false when
// the request was no longer queued.
func (db *DB) MarkUndoSending(requestID string) (bool, error) {
	res, err := db.Exec(`UPDATE undo_requests SET status = ?, updated_at = ? WHERE request_id = ? AND status = ?`,
		UndoSending, time.Now().UnixMilli(), requestID, UndoQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// MarkUndoDone records the service status for a completed request.
func (db *DB) MarkUndoDone(requestID string, resultStatus int) error {
	_, err := db.Exec(`UPDATE undo_requests SET status = ?, result_status = ?, updated_at = ? WHERE request_id = ?`,
		UndoDone, resultStatus, time.Now().UnixMilli(), requestID)
	return err
}

// MarkUndoFailed records why a request failed.
func (db *DB) MarkUndoFailed(requestID, errMsg string) error {
	_, err := db.Exec(`UPDATE undo_requests SET status = ?, error_message = ?, updated_at = ? WHERE request_id = ?`,
		UndoFailed, errMsg, time.Now().UnixMilli(), requestID)
	return err
}

// PendingUndos returns queued requests, oldest first.
func (db *DB) PendingUndos() ([]UndoRequest, error) {
	rows, err := db.Query(`
		SELECT id, request_id, global_msg_id, status, result_status, error_message, created_at, updated_at
		FROM undo_requests WHERE status = ? ORDER BY created_at ASC, id ASC`, UndoQueued)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var reqs []UndoRequest
	for rows.Next() {
		var r UndoRequest
		if err := rows.Scan(&r.ID, &r.RequestID, &r.GlobalMsgID, &r.Status, &r.ResultStatus, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, rows.Err()
}

// GetUndo returns an undo request by id, or nil if unknown.
func (db *DB) GetUndo(requestID string) (*UndoRequest, error) {
	var r UndoRequest
	err := db.QueryRow(`
		SELECT id, request_id, global_msg_id, status, result_status, error_message, created_at, updated_at
		FROM undo_requests WHERE request_id = ?`, requestID).
		Scan(&r.ID, &r.RequestID, &r.GlobalMsgID, &r.Status, &r.ResultStatus, &r.ErrorMessage, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// PendingUndoCount returns the number of queued requests.
func (db *DB) PendingUndoCount() (int64, error) {
	var count int64
	err := db.QueryRow(`SELECT COUNT(*) FROM undo_requests WHERE status = ?`, UndoQueued).Scan(&count)
	return count, err
}
