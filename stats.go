package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
)

func statPatchHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		statName := strings.TrimPrefix(r.URL.Path, "/api/stats/")
		if statName == "" || strings.Contains(statName, "/") || !isValidStatName(statName) {
			writeError(w, http.StatusBadRequest, "INVALID_STAT_NAME", "")
			return
		}

		var req PatchStatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
			return
		}

		userID := resolveUserID(req.UserID)
		if !isValidUserID(userID) {
			writeError(w, http.StatusBadRequest, "INVALID_USER_ID", "")
			return
		}
		if (req.Value == nil) == (req.Delta == nil) {
			writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "exactly one of value or delta is required")
			return
		}

		state, err := LoadGameState(db, userID)
		if err != nil {
			log.Println("Failed to load state:", err)
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
			return
		}
		if state == nil {
			writeError(w, http.StatusNotFound, "STATE_NOT_FOUND", "no state for user "+userID)
			return
		}
		if _, ok := state.Stats[statName]; !ok {
			writeError(w, http.StatusBadRequest, "UNKNOWN_STAT", statName+" is not a stored stat")
			return
		}

		applyStatPatch(state.Stats, statName, req.Value, req.Delta)
		clampStat(state.Stats, statName)

		if err := UpdateStats(db, userID, state.Stats); err != nil {
			log.Println("Failed to update stats:", err)
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
			return
		}

		statPatches.WithLabelValues(statName).Inc()
		recordStateEvent(db, userID, "stat_patched", map[string]interface{}{
			"stat":  statName,
			"value": state.Stats[statName],
		})

		writeJSON(w, http.StatusOK, PatchStatResponse{Success: true, Stats: state.Stats})
	}
}

func applyStatPatch(stats map[string]float64, name string, value, delta *float64) {
	switch {
	case value != nil:
		stats[name] = *value
	case delta != nil:
		stats[name] = stats[name] + *delta
	}
}

// clampStat enforces the per-stat ranges. Stats without a rule pass through.
func clampStat(stats map[string]float64, name string) {
	switch name {
	case "level":
		if stats[name] < 1 {
			stats[name] = 1
		}
	case "hearts":
		max := stats["maxHearts"]
		if max == 0 {
			max = 5
		}
		if stats[name] > max {
			stats[name] = max
		}
		if stats[name] < 0 {
			stats[name] = 0
		}
	case "rupees", "trust", "xp":
		if stats[name] < 0 {
			stats[name] = 0
		}
	}
}
