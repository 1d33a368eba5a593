package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

func customTasksHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			listCustomTasksHandler(db, w, r)
		case http.MethodPost:
			addCustomTaskHandler(db, w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func customTaskItemHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		taskID := strings.TrimPrefix(r.URL.Path, "/api/custom-tasks/")
		if taskID == "" || strings.Contains(taskID, "/") {
			writeError(w, http.StatusBadRequest, "INVALID_TASK_ID", "")
			return
		}

		switch r.Method {
		case http.MethodPatch:
			updateCustomTaskHandler(db, w, r, taskID)
		case http.MethodDelete:
			deleteCustomTaskHandler(db, w, r, taskID)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}
}

func listCustomTasksHandler(db *sql.DB, w http.ResponseWriter, r *http.Request) {
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

	writeJSON(w, http.StatusOK, state.Custom)
}

func addCustomTaskHandler(db *sql.DB, w http.ResponseWriter, r *http.Request) {
	var req AddCustomTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	userID := resolveUserID(req.UserID)
	if !isValidUserID(userID) {
		writeError(w, http.StatusBadRequest, "INVALID_USER_ID", "")
		return
	}

	task := map[string]interface{}{}
	if len(req.Task) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_TASK", "task is required")
		return
	}
	if err := json.Unmarshal(req.Task, &task); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_TASK", err.Error())
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

	tasks, err := decodeCustomTasks(state.Custom)
	if err != nil {
		log.Println("Stored custom tasks are malformed:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	tasks = appendCustomTask(tasks, task)

	if err := persistCustomTasks(db, userID, tasks); err != nil {
		log.Println("Failed to save custom tasks:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	recordStateEvent(db, userID, "custom_task_added", map[string]interface{}{
		"taskId": customTaskID(task),
	})

	writeJSON(w, http.StatusOK, AddCustomTaskResponse{
		Success:     true,
		Task:        task,
		CustomTasks: tasks,
	})
}

func updateCustomTaskHandler(db *sql.DB, w http.ResponseWriter, r *http.Request, taskID string) {
	var req UpdateCustomTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	userID := resolveUserID(req.UserID)
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

	tasks, err := decodeCustomTasks(state.Custom)
	if err != nil {
		log.Println("Stored custom tasks are malformed:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	// Unknown ids pass through unchanged; callers treat this as an
	// idempotent filter rather than an existence check.
	tasks = mergeCustomTask(tasks, taskID, req.Updates)

	if err := persistCustomTasks(db, userID, tasks); err != nil {
		log.Println("Failed to save custom tasks:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	recordStateEvent(db, userID, "custom_task_updated", map[string]interface{}{
		"taskId": taskID,
	})

	writeJSON(w, http.StatusOK, CustomTasksResponse{Success: true, CustomTasks: tasks})
}

func deleteCustomTaskHandler(db *sql.DB, w http.ResponseWriter, r *http.Request, taskID string) {
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

	tasks, err := decodeCustomTasks(state.Custom)
	if err != nil {
		log.Println("Stored custom tasks are malformed:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	tasks = removeCustomTask(tasks, taskID)

	if err := persistCustomTasks(db, userID, tasks); err != nil {
		log.Println("Failed to save custom tasks:", err)
		writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "")
		return
	}

	recordStateEvent(db, userID, "custom_task_deleted", map[string]interface{}{
		"taskId": taskID,
	})

	writeJSON(w, http.StatusOK, CustomTasksResponse{Success: true, CustomTasks: tasks})
}

/* ======================
   Custom Task Helpers
   ====================== */

func decodeCustomTasks(raw json.RawMessage) ([]map[string]interface{}, error) {
	tasks := []map[string]interface{}{}
	if len(raw) == 0 {
		return tasks, nil
	}
	if err := json.Unmarshal(raw, &tasks); err != nil {
		return nil, fmt.Errorf("expected an array of task objects: %w", err)
	}
	return tasks, nil
}

func persistCustomTasks(db *sql.DB, userID string, tasks []map[string]interface{}) error {
	encoded, err := json.Marshal(tasks)
	if err != nil {
		return err
	}
	return UpdateCustomTasks(db, userID, encoded)
}

func customTaskID(task map[string]interface{}) string {
	id, _ := task["id"].(string)
	return id
}

// appendCustomTask adds task at the end of the sequence, assigning a fresh
// id when the caller did not supply one.
func appendCustomTask(tasks []map[string]interface{}, task map[string]interface{}) []map[string]interface{} {
	if customTaskID(task) == "" {
		task["id"] = uuid.NewString()
	}
	return append(tasks, task)
}

// mergeCustomTask shallow-merges updates onto the task with the given id.
// Fields named in updates overwrite; everything else is preserved.
func mergeCustomTask(tasks []map[string]interface{}, taskID string, updates map[string]interface{}) []map[string]interface{} {
	for _, task := range tasks {
		if customTaskID(task) != taskID {
			continue
		}
		for k, v := range updates {
			task[k] = v
		}
	}
	return tasks
}

func removeCustomTask(tasks []map[string]interface{}, taskID string) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tasks))
	for _, task := range tasks {
		if customTaskID(task) == taskID {
			continue
		}
		out = append(out, task)
	}
	return out
}
