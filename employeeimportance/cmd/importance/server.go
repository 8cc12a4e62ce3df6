//go:build !solution

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	ei "github.com/rogov-ks/employee-importance/employeeimportance"
)

// Ключ для хранения logger в gin.Context
const loggerKey = "logger"

const requestIDHeader = "X-Request-ID"

const (
	maxBodyBytes          = 1 << 20
	defaultComputeTimeout = 10 * time.Second
)

type importanceRequest struct {
	Employees []ei.Employee `json:"employees"`
	ID        *int          `json:"id" binding:"required"`
	CountOnce bool          `json:"count_once"`
	Missing   string        `json:"missing"`
}

type importanceResponse struct {
	ID         int `json:"id"`
	Importance int `json:"importance"`
}

type handlers struct {
	requests *prometheus.CounterVec
	// Ограничение на время одного обхода: подсчёт по путям экспоненциален на ромбах
	computeTimeout time.Duration
}

func newHandlers(reg prometheus.Registerer, computeTimeout time.Duration) *handlers {
	h := &handlers{
		computeTimeout: computeTimeout,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "importance_requests_total",
			Help: "Number of importance queries by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(h.requests)
	return h
}

// slogMiddleware логирует запросы и кладёт logger с request id в контекст
func slogMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			if id, err := uuid.NewV4(); err == nil {
				reqID = id.String()
			}
		}
		c.Header(requestIDHeader, reqID)

		reqLogger := logger.With("request_id", reqID)
		c.Set(loggerKey, reqLogger)

		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		reqLogger.Info("request processed",
			"method", method,
			"path", path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

// recoveryMiddleware обрабатывает паники и возвращает 500 ошибку
func recoveryMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		getLogger(c, logger).Error("panic recovered",
			"error", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	})
}

func getLogger(c *gin.Context, fallback *slog.Logger) *slog.Logger {
	if logger, exists := c.Get(loggerKey); exists {
		if l, ok := logger.(*slog.Logger); ok {
			return l
		}
	}
	return fallback
}

func newRouter(logger *slog.Logger, reg *prometheus.Registry, computeTimeout time.Duration) *gin.Engine {
	h := newHandlers(reg, computeTimeout)

	router := gin.New()
	// Recovery middleware должен быть первым
	router.Use(recoveryMiddleware(logger))
	router.Use(slogMiddleware(logger))

	router.GET("/pong", pongHandler)
	router.POST("/importance", h.importance)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	return router
}

func pongHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

func (h *handlers) importance(c *gin.Context) {
	logger := getLogger(c, slog.Default())

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var req importanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("failed to parse JSON", "error", err)
		h.requests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	opts, err := resolverOptions(req.CountOnce, req.Missing)
	if err != nil {
		logger.Warn("bad missing policy", "missing", req.Missing, "error", err)
		h.requests.WithLabelValues("bad_request").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.computeTimeout)
	defer cancel()

	total, err := ei.NewResolver(req.Employees, opts...).ImportanceContext(ctx, *req.ID)
	switch {
	case err == nil:
	case errors.Is(err, ei.ErrNotFound):
		logger.Warn("employee not found", "id", *req.ID, "error", err)
		h.requests.WithLabelValues("not_found").Inc()
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ei.ErrCycle):
		logger.Warn("cycle in subordinates", "id", *req.ID, "error", err)
		h.requests.WithLabelValues("cycle").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ei.ErrOverflow):
		logger.Warn("importance overflow", "id", *req.ID, "error", err)
		h.requests.WithLabelValues("overflow").Inc()
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Warn("importance canceled", "id", *req.ID, "error", err)
		h.requests.WithLabelValues("canceled").Inc()
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "computation canceled"})
		return
	default:
		logger.Error("importance failed", "id", *req.ID, "error", err)
		h.requests.WithLabelValues("error").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	logger.Info("importance computed", "id", *req.ID, "employees", len(req.Employees), "importance", total)
	h.requests.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, importanceResponse{ID: *req.ID, Importance: total})
}
