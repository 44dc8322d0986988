// Package httpjson is the HTTP/JSON (and WebSocket) surface of the tracker.
package httpjson

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/swapflow-hq/swapflow/api/config"
	"github.com/swapflow-hq/swapflow/api/db"
	"github.com/swapflow-hq/swapflow/api/fanout"
	web "github.com/swapflow-hq/swapflow/api/http"
	"github.com/swapflow-hq/swapflow/api/logging"
	"github.com/swapflow-hq/swapflow/api/models"
	"github.com/swapflow-hq/swapflow/api/services"
)

type handler struct {
	*gin.Engine

	deps   Dependencies
	logger zerolog.Logger
}

type Config struct {
	Dependencies

	Addr           string
	AllowedOrigins string
	LogRequests    bool

	Logger zerolog.Logger
}

// Hub is the subscriber registry consumed by the stream and admin routes.
type Hub interface {
	Register(ctx context.Context, conn *websocket.Conn, intentID, userID string) (*fanout.Subscriber, error)
	Push(intentID string, snapshot models.StatusSnapshot)
	SubscriberCount(intentID string) int
	TotalSubscribers() int
	PushCount() uint64
	FailureCount() uint64
}

// MessageTracker is the tracked-message surface consumed by the admin routes.
type MessageTracker interface {
	ActiveCount() int
	ActiveMessages() []models.TrackedMessage
	PollUntilTerminal(ctx context.Context, messageID, intentID string, maxAttempts int, interval time.Duration) (services.TrackerResult, error)
}

type Dependencies struct {
	Database     db.Database
	Hub          Hub
	Tracker      MessageTracker
	Metrics      *services.MetricsService
	ChainConfigs map[uint64]*config.ChainConfig
}

const (
	requestTimeout = 10 * time.Second
	rwTimeout      = 15 * time.Second
	maxPageSize    = 100
)

var (
	ErrNotFound      = errors.New("not found")
	ErrParamRequired = errors.New("param required")
)

func New(cfg Config) *http.Server {
	return &http.Server{
		Addr:    cfg.Addr,
		Handler: newHandler(cfg, gin.New()),

		// Time to read the request headers/body
		ReadTimeout: rwTimeout,

		// WriteTimeout stays zero: it would also apply to hijacked
		// WebSocket connections, which are long-lived on purpose.
		// Plain JSON responses are bounded by the timeout middleware.
		WriteTimeout: 0,

		// Time to keep connections alive
		IdleTimeout: 60 * time.Second,

		// Max header bytes (1MB)
		MaxHeaderBytes: 1024 * 1024,
	}
}

func newHandler(cfg Config, router *gin.Engine) *handler {
	h := &handler{
		Engine: router,
		deps:   cfg.Dependencies,
		logger: cfg.Logger.With().Str(logging.FieldModule, "api").Logger(),
	}

	logLevel := zerolog.DebugLevel
	if cfg.LogRequests {
		logLevel = zerolog.InfoLevel
	}

	h.Use(
		gin.Recovery(),
		web.Zerolog(cfg.Logger, logLevel),
		web.Timeout(requestTimeout, cfg.Logger),
		web.CORS(cfg.AllowedOrigins),
	)

	h.setupAPIRoutes()
	h.setupObservabilityRoutes()

	return h
}

func (h *handler) setupAPIRoutes() {
	v1 := h.Group("/api/v1")

	h.setupIntentRoutes(v1)
	h.setupAdminRoutes(v1)
}

func (h *handler) setupObservabilityRoutes() {
	h.GET("/health", h.getHealthCheck)

	if h.deps.Metrics != nil {
		h.GET("/metrics", gin.WrapH(h.deps.Metrics.GetHandler()))
		h.GET("/api/v1/metrics", h.getMetricsSummary)
	}
}

func (h *handler) getMetricsSummary(c *gin.Context) {
	summary, err := h.deps.Metrics.GetMetricsSummary()
	if err != nil {
		web.ErrInternalServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

func (h *handler) getHealthCheck(c *gin.Context) {
	if err := h.deps.Database.Ping(); err != nil {
		web.ErrInternalServerError(c, errors.Wrap(err, "database unreachable"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type paginationParams struct {
	Page     int
	PageSize int
}

var errPageSize = errors.Errorf("invalid page_size parameter (must be between 1 and %d)", maxPageSize)

func resolvePagination(c *gin.Context) (paginationParams, error) {
	var (
		pageRaw     = c.DefaultQuery("page", "1")
		pageSizeRaw = c.DefaultQuery("page_size", "20")
	)

	page, err := strconv.Atoi(pageRaw)
	if err != nil || page < 1 {
		return paginationParams{}, errors.New("invalid page parameter")
	}

	pageSize, err := strconv.Atoi(pageSizeRaw)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		return paginationParams{}, errPageSize
	}

	return paginationParams{
		Page:     page,
		PageSize: pageSize,
	}, nil
}
