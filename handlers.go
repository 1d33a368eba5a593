package main

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Println("response encode failed:", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string, details string) {
	writeJSON(w, status, ErrorResponse{Error: message, Details: details})
}

func resolveUserID(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultUserID
	}
	return raw
}

func serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("app-backend-tt: per-user game state API\n"))
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().UTC().Format(time.RFC3339)
		if err := db.Ping(); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, HealthResponse{
				Status: "degraded",
				Time:   now,
				Error:  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Time: now})
	}
}

func stateHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			getStateHandler(db, w, r)
		case http.MethodPost:
			saveStateHandler(db, w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func getStateHandler(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	userID := resolveUserID(r.URL.Query().Get("user_id"))
	if !isValidUserID(userID) {
		writeError(w, http.StatusBadRequest, "INVALID_USER_ID", "")
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

	writeJSON(w, http.StatusOK, state.response())
}

func saveStateHandler(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var req SaveStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	userID := resolveUserID(req.UserID)
	if !isValidUserID(userID) {
		writeError(w, http.StatusBadRequest, "INVALID_USER_ID", "")
		return
	}

	state, err := gameStateFromRequest(userID, req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_STATE", err.Error())
		return
	}

	if err := UpsertGameState(db, state); err != nil {
		log.Println("Failed to save state:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	recordStateEvent(db, userID, "state_saved", map[string]interface{}{
		"stats": len(state.Stats),
	})

	writeJSON(w, http.StatusOK, SaveStateResponse{Success: true, Message: "state saved"})
}
