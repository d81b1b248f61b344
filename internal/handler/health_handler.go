package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sanjio/sanjio/internal/config"
	"github.com/sanjio/sanjio/internal/response"
)

const healthTimeout = 2 * time.Second

// DBPinger is satisfied by *pgxpool.Pool.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// QueueInspector is the part of the Redis client the health check reads.
type QueueInspector interface {
	Ping(ctx context.Context) *redis.StatusCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// HealthHandler reports liveness of the server and its dependencies.
type HealthHandler struct {
	db        DBPinger
	rdb       QueueInspector
	startTime time.Time
	log       zerolog.Logger
}

func NewHealthHandler(db DBPinger, rdb QueueInspector, log zerolog.Logger) *HealthHandler {
	return &HealthHandler{
		db:        db,
		rdb:       rdb,
		startTime: time.Now(),
		log:       log.With().Str("component", "health_handler").Logger(),
	}
}

type healthStatus struct {
	Status     string `json:"status"`
	Uptime     string `json:"uptime"`
	Postgres   string `json:"postgres"`
	Redis      string `json:"redis"`
	Goroutines int    `json:"goroutines"`

	// Autosave jobs waiting for the worker, and jobs it gave up on.
	QueueAnswers int64 `json:"queue_answers"`
	DeadAnswers  int64 `json:"dead_answers"`
}

// Health godoc
// GET /health
// Pings PostgreSQL and Redis and reports the autosave backlog. Any failed
// dependency turns the answer into 503.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := healthStatus{
		Status:     "ok",
		Uptime:     formatDuration(time.Since(h.startTime)),
		Postgres:   "ok",
		Redis:      "ok",
		Goroutines: runtime.NumGoroutine(),
	}

	if err := h.db.Ping(ctx); err != nil {
		h.log.Warn().Err(err).Msg("PostgreSQL ping failed")
		status.Postgres = "down"
		status.Status = "degraded"
	}

	if err := h.rdb.Ping(ctx).Err(); err != nil {
		h.log.Warn().Err(err).Msg("Redis ping failed")
		status.Redis = "down"
		status.Status = "degraded"
	} else {
		status.QueueAnswers, _ = h.rdb.LLen(ctx, config.WorkerKey.PersistAnswersQueue).Result()
		status.DeadAnswers, _ = h.rdb.LLen(ctx, config.WorkerKey.PersistAnswersDeadLetter).Result()
	}

	code := http.StatusOK
	if status.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	response.Success(c, code, status)
}

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
