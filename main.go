package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/time/rate"
)

/* ======================
   Request / Response Types
   ====================== */

type SaveStateRequest struct {
	UserID    string          `json:"user_id,omitempty"`
	Stats     json.RawMessage `json:"stats"`
	Tasks     json.RawMessage `json:"tasks"`
	Items     json.RawMessage `json:"items"`
	Props     json.RawMessage `json:"props"`
	Custom    json.RawMessage `json:"custom"`
	Day       string          `json:"day"`
	Collapsed json.RawMessage `json:"collapsed"`
	World     json.RawMessage `json:"world,omitempty"`
}

type SaveStateResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type StateResponse struct {
	Stats     map[string]float64 `json:"stats"`
	Tasks     json.RawMessage    `json:"tasks"`
	Items     json.RawMessage    `json:"items"`
	Props     json.RawMessage    `json:"props"`
	Custom    json.RawMessage    `json:"custom"`
	Day       string             `json:"day"`
	Collapsed json.RawMessage    `json:"collapsed"`
	World     json.RawMessage    `json:"world"`
}

type PatchStatRequest struct {
	UserID string   `json:"user_id,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Delta  *float64 `json:"delta,omitempty"`
}

type PatchStatResponse struct {
	Success bool               `json:"success"`
	Stats   map[string]float64 `json:"stats"`
}

type AddCustomTaskRequest struct {
	UserID string          `json:"user_id,omitempty"`
	Task   json.RawMessage `json:"task"`
}

type AddCustomTaskResponse struct {
	Success     bool                     `json:"success"`
	Task        map[string]interface{}   `json:"task"`
	CustomTasks []map[string]interface{} `json:"customTasks"`
}

type UpdateCustomTaskRequest struct {
	UserID  string                 `json:"user_id,omitempty"`
	Updates map[string]interface{} `json:"updates"`
}

type CustomTasksResponse struct {
	Success     bool                     `json:"success"`
	CustomTasks []map[string]interface{} `json:"customTasks"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

/* ======================
   main()
   ====================== */

func main() {
	godotenv.Load()

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "local"
	}
	log.Println("App environment:", env)

	// Database
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		log.Fatal("failed to open database:", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		log.Fatal("failed to ping database:", err)
	}
	log.Println("Connected to PostgreSQL")

	if err := ensureSchema(db); err != nil {
		log.Fatal("Failed to ensure schema:", err)
	}

	ctx := context.Background()
	lockConn, acquired, err := acquireStartupLock(ctx, db)
	if err != nil {
		log.Fatal("Failed to acquire startup lock:", err)
	}
	if acquired {
		startupLockConn = lockConn
		log.Println("Startup lock acquired; running default state bootstrap")
		if err := ensureDefaultState(db); err != nil {
			log.Fatal("Default state bootstrap failed:", err)
		}
		startDocumentCountLoop(db)
	} else {
		log.Println("Startup lock held by another instance; skipping leader-only initialization")
		if lockConn != nil {
			_ = lockConn.Close()
		}
	}

	var limiter *RateLimitManager
	rps := parseEnvInt("RATE_LIMIT_RPS", 20)
	burst := parseEnvInt("RATE_LIMIT_BURST", 40)
	if rps > 0 {
		limiter = NewRateLimitManager(rate.Limit(rps), burst)
	}

	// HTTP server
	mux := http.NewServeMux()
	registerRoutes(mux, db)
	registerMetricsRoute(mux)

	handler := withCORS(withRequestMetrics(withRateLimit(limiter, mux)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	addr := "0.0.0.0:" + port
	log.Println("Listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal("server failed:", err)
	}
}

/* ======================
   Routes
   ====================== */

func registerRoutes(mux *http.ServeMux, db *sql.DB) {
	mux.HandleFunc("/", serveIndex)
	mux.HandleFunc("/api/health", healthHandler(db))
	mux.HandleFunc("/api/state", stateHandler(db))
	mux.HandleFunc("/api/stats/", statPatchHandler(db))
	mux.HandleFunc("/api/custom-tasks", customTasksHandler(db))
	mux.HandleFunc("/api/custom-tasks/", customTaskItemHandler(db))
}

/* ======================
   Startup Lock
   ====================== */

const startupAdvisoryLockID int64 = 571203984

var startupLockConn *sql.Conn

func acquireStartupLock(ctx context.Context, db *sql.DB) (*sql.Conn, bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, false, err
	}
	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, startupAdvisoryLockID).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, false, err
	}
	if !acquired {
		_ = conn.Close()
		return nil, false, nil
	}
	return conn, true, nil
}

func parseEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
