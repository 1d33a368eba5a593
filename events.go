package main

import (
	"database/sql"
	"encoding/json"
	"time"
)

// recordStateEvent appends to the audit trail. Best effort: a failed insert
// never fails the write that triggered it.
func recordStateEvent(db *sql.DB, userID string, eventType string, payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}

	_, _ = db.Exec(`
		INSERT INTO state_events (user_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`, userID, eventType, string(data), time.Now().UTC())
}
