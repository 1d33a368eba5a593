package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests served, by route, method and status.",
	}, []string{"route", "method", "status"})

	statPatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stat_patches_total",
		Help: "Successful stat patch operations, by stat name.",
	}, []string{"stat"})

	documentCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "game_state_documents",
		Help: "Number of persisted game state documents.",
	})
)

func init() {
	prometheus.MustRegister(httpRequests, statPatches, documentCount)
}

func registerMetricsRoute(mux *http.ServeMux) {
	mux.Handle("/metrics", promhttp.Handler())
}

// startDocumentCountLoop refreshes the document gauge once a minute.
func startDocumentCountLoop(db *sql.DB) {
	refreshDocumentCount(db)

	ticker := time.NewTicker(60 * time.Second)

	go func() {
		for range ticker.C {
			refreshDocumentCount(db)
		}
	}()
}

func refreshDocumentCount(db *sql.DB) {
	count, err := countGameStates(db)
	if err != nil {
		log.Println("document count query failed:", err)
		return
	}
	documentCount.Set(float64(count))
}
