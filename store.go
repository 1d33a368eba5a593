package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamps are bound from Go instead of NOW() so the same statements run
// against the sqlite-backed store used in tests.

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS game_states (
			user_id TEXT PRIMARY KEY,
			stats JSONB NOT NULL,
			tasks JSONB NOT NULL,
			items JSONB NOT NULL,
			props JSONB NOT NULL,
			custom JSONB NOT NULL,
			day TEXT NOT NULL,
			collapsed JSONB NOT NULL,
			world JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS state_events (
			user_id TEXT NOT NULL,
			event_type TEXT NOT NULL,
			payload JSONB,
			created_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// ensureDefaultState creates the "default" user's starting document if absent.
func ensureDefaultState(db *sql.DB) error {
	s := defaultGameState(defaultUserID)
	statsJSON, err := json.Marshal(s.Stats)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO game_states (
			user_id,
			stats,
			tasks,
			items,
			props,
			custom,
			day,
			collapsed,
			world,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING
	`,
		s.UserID,
		string(statsJSON),
		string(s.Tasks),
		string(s.Items),
		string(s.Props),
		string(s.Custom),
		s.Day,
		string(s.Collapsed),
		string(s.World),
		time.Now().UTC(),
	)
	return err
}

func LoadGameState(db *sql.DB, userID string) (*GameState, error) {
	var s GameState
	var statsRaw, tasks, items, props, custom, collapsed, world []byte

	err := db.QueryRow(`
		SELECT user_id, stats, tasks, items, props, custom, day, collapsed, world
		FROM game_states
		WHERE user_id = $1
	`, userID).Scan(&s.UserID, &statsRaw, &tasks, &items, &props, &custom, &s.Day, &collapsed, &world)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	s.Stats = map[string]float64{}
	if err := json.Unmarshal(statsRaw, &s.Stats); err != nil {
		return nil, fmt.Errorf("decode stored stats for %s: %w", userID, err)
	}
	s.Tasks = json.RawMessage(tasks)
	s.Items = json.RawMessage(items)
	s.Props = json.RawMessage(props)
	s.Custom = json.RawMessage(custom)
	s.Collapsed = json.RawMessage(collapsed)
	if len(world) == 0 {
		world = []byte(`{}`)
	}
	s.World = json.RawMessage(world)

	return &s, nil
}

// UpsertGameState replaces every field of the document unconditionally.
func UpsertGameState(db *sql.DB, s *GameState) error {
	statsJSON, err := json.Marshal(s.Stats)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		INSERT INTO game_states (
			user_id,
			stats,
			tasks,
			items,
			props,
			custom,
			day,
			collapsed,
			world,
			updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id)
		DO UPDATE SET
			stats = EXCLUDED.stats,
			tasks = EXCLUDED.tasks,
			items = EXCLUDED.items,
			props = EXCLUDED.props,
			custom = EXCLUDED.custom,
			day = EXCLUDED.day,
			collapsed = EXCLUDED.collapsed,
			world = EXCLUDED.world,
			updated_at = EXCLUDED.updated_at
	`,
		s.UserID,
		string(statsJSON),
		string(s.Tasks),
		string(s.Items),
		string(s.Props),
		string(s.Custom),
		s.Day,
		string(s.Collapsed),
		string(s.World),
		time.Now().UTC(),
	)
	return err
}

// UpdateStats persists only the stats column; other fields stay untouched.
func UpdateStats(db *sql.DB, userID string, stats map[string]float64) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		UPDATE game_states
		SET stats = $2,
			updated_at = $3
		WHERE user_id = $1
	`, userID, string(statsJSON), time.Now().UTC())
	return err
}

// UpdateCustomTasks persists only the custom column.
func UpdateCustomTasks(db *sql.DB, userID string, custom json.RawMessage) error {
	_, err := db.Exec(`
		UPDATE game_states
		SET custom = $2,
			updated_at = $3
		WHERE user_id = $1
	`, userID, string(custom), time.Now().UTC())
	return err
}

func countGameStates(db *sql.DB) (int, error) {
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*)
		FROM game_states
	`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}
