// Package metrics exposes the prometheus counters incremented by the core
// services and served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BorrowsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_borrows_total",
		Help: "Successful book borrowings.",
	})

	ReturnsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_returns_total",
		Help: "Successful book returns.",
	})

	SessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_sessions_started_total",
		Help: "Classroom sessions started.",
	})

	SessionsEndedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "campus_sessions_ended_total",
		Help: "Classroom sessions ended.",
	})

	CheckInsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "campus_checkins_total",
		Help: "Student check-ins by resulting status.",
	}, []string{"status"})
)
