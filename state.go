package main

import (
	"bytes"
	"encoding/json"
	"fmt"
)

const defaultUserID = "default"

// GameState is the full per-user document. Stats are kept structured because
// the patch operations mutate them; the pass-through fields stay as raw JSON
// in whatever normalized form they were last written in.
type GameState struct {
	UserID    string
	Stats     map[string]float64
	Tasks     json.RawMessage
	Items     json.RawMessage
	Props     json.RawMessage
	Custom    json.RawMessage
	Day       string
	Collapsed json.RawMessage
	World     json.RawMessage
}

func defaultGameState(userID string) *GameState {
	return &GameState{
		UserID: userID,
		Stats: map[string]float64{
			"trust":      0,
			"rupees":     0,
			"hearts":     3,
			"maxHearts":  5,
			"xp":         0,
			"level":      1,
			"ticksToday": 0,
		},
		Tasks:     json.RawMessage(`[]`),
		Items:     json.RawMessage(`[]`),
		Props:     json.RawMessage(`[]`),
		Custom:    json.RawMessage(`[]`),
		Day:       "",
		Collapsed: json.RawMessage(`{}`),
		World:     json.RawMessage(`{}`),
	}
}

func (s *GameState) response() StateResponse {
	return StateResponse{
		Stats:     s.Stats,
		Tasks:     s.Tasks,
		Items:     s.Items,
		Props:     s.Props,
		Custom:    s.Custom,
		Day:       s.Day,
		Collapsed: s.Collapsed,
		World:     s.World,
	}
}

// unwrapField collapses the dual encoding clients use: a sub-field may arrive
// either as a structured JSON value or as a JSON string containing serialized
// JSON. Returns nil for absent/null fields.
func unwrapField(raw json.RawMessage) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, err
		}
		trimmed = bytes.TrimSpace([]byte(inner))
		if len(trimmed) == 0 {
			return nil, nil
		}
	}
	if !json.Valid(trimmed) {
		return nil, fmt.Errorf("not valid JSON")
	}
	out := make(json.RawMessage, len(trimmed))
	copy(out, trimmed)
	return out, nil
}

func normalizeArrayField(name string, raw json.RawMessage) (json.RawMessage, error) {
	value, err := unwrapField(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if value == nil {
		return json.RawMessage(`[]`), nil
	}
	if value[0] != '[' {
		return nil, fmt.Errorf("field %s: expected a JSON array", name)
	}
	return value, nil
}

func normalizeObjectField(name string, raw json.RawMessage) (json.RawMessage, error) {
	value, err := unwrapField(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	if value == nil {
		return json.RawMessage(`{}`), nil
	}
	if value[0] != '{' {
		return nil, fmt.Errorf("field %s: expected a JSON object", name)
	}
	return value, nil
}

func normalizeStats(raw json.RawMessage) (map[string]float64, error) {
	value, err := normalizeObjectField("stats", raw)
	if err != nil {
		return nil, err
	}
	stats := map[string]float64{}
	if err := json.Unmarshal(value, &stats); err != nil {
		return nil, fmt.Errorf("field stats: values must be numeric: %w", err)
	}
	return stats, nil
}

func normalizeCollapsed(raw json.RawMessage) (json.RawMessage, error) {
	value, err := normalizeObjectField("collapsed", raw)
	if err != nil {
		return nil, err
	}
	flags := map[string]bool{}
	if err := json.Unmarshal(value, &flags); err != nil {
		return nil, fmt.Errorf("field collapsed: values must be boolean: %w", err)
	}
	return value, nil
}

// gameStateFromRequest validates and normalizes a whole-document write.
func gameStateFromRequest(userID string, req SaveStateRequest) (*GameState, error) {
	stats, err := normalizeStats(req.Stats)
	if err != nil {
		return nil, err
	}
	tasks, err := normalizeArrayField("tasks", req.Tasks)
	if err != nil {
		return nil, err
	}
	items, err := normalizeArrayField("items", req.Items)
	if err != nil {
		return nil, err
	}
	props, err := normalizeArrayField("props", req.Props)
	if err != nil {
		return nil, err
	}
	custom, err := normalizeArrayField("custom", req.Custom)
	if err != nil {
		return nil, err
	}
	if _, err := decodeCustomTasks(custom); err != nil {
		return nil, fmt.Errorf("field custom: %w", err)
	}
	collapsed, err := normalizeCollapsed(req.Collapsed)
	if err != nil {
		return nil, err
	}
	world, err := normalizeObjectField("world", req.World)
	if err != nil {
		return nil, err
	}

	return &GameState{
		UserID:    userID,
		Stats:     stats,
		Tasks:     tasks,
		Items:     items,
		Props:     props,
		Custom:    custom,
		Day:       req.Day,
		Collapsed: collapsed,
		World:     world,
	}, nil
}
