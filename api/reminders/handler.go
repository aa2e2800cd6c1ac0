// Package reminders exposes the operator actions of the reminder engine over HTTP.
package reminders

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kilianp07/fleetremind/core/dispatch"
	"github.com/kilianp07/fleetremind/core/events"
	"github.com/kilianp07/fleetremind/core/logger"
	"github.com/kilianp07/fleetremind/core/model"
	"github.com/kilianp07/fleetremind/core/orchestrator"
	"github.com/kilianp07/fleetremind/core/sanitize"
	"github.com/kilianp07/fleetremind/core/store"
)

const (
	dateLayout      = "2006-01-02"
	defaultLogLimit = 100
	maxLogLimit     = 1000
)

// Engine is the subset of the orchestrator the API drives.
type Engine interface {
	RunDailyCheck(ctx context.Context, obs orchestrator.Observer) (orchestrator.Report, error)
	ManualCleanup(ctx context.Context, obs orchestrator.Observer) (sanitize.Report, error)
	SendReminder(ctx context.Context, id string, obs orchestrator.Observer) (dispatch.Result, error)
	Retry(ctx context.Context, logID string, obs orchestrator.Observer) (dispatch.Result, error)
	DueReminders(ctx context.Context, asOf time.Time) ([]model.ReminderConfig, error)
	Today() time.Time
}

// Handler serves the operator endpoints.
type Handler struct {
	engine Engine
	logs   store.DeliveryLogStore
	obs    events.Observer
	log    logger.Logger
}

func NewHandler(engine Engine, logs store.DeliveryLogStore, obs events.Observer, log logger.Logger) *Handler {
	return &Handler{engine: engine, logs: logs, obs: events.OrNop(obs), log: logger.OrNop(log)}
}

// NewRouter mounts the handler on a gin engine. Requests must carry
// "Authorization: Bearer <token>" when token is non-empty; /health is open.
func NewRouter(h *Handler, token string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	api := r.Group("/api", BearerAuth(token))
	{
		api.POST("/reminders/run", h.Run)
		api.POST("/reminders/cleanup", h.Cleanup)
		api.GET("/reminders/due", h.Due)
		api.POST("/reminders/:id/send", h.Send)
		api.GET("/delivery-logs", h.Logs)
		api.POST("/delivery-logs/:id/retry", h.Retry)
	}
	return r
}

// BearerAuth rejects requests without the expected bearer token.
func BearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token != "" && c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func (h *Handler) Run(c *gin.Context) {
	rep, err := h.engine.RunDailyCheck(c.Request.Context(), h.obs)
	if err != nil {
		h.fail(c, "run", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) Cleanup(c *gin.Context) {
	rep, err := h.engine.ManualCleanup(c.Request.Context(), h.obs)
	if err != nil {
		h.fail(c, "cleanup", err)
		return
	}
	c.JSON(http.StatusOK, rep)
}

func (h *Handler) Send(c *gin.Context) {
	res, err := h.engine.SendReminder(c.Request.Context(), c.Param("id"), h.obs)
	if err != nil {
		h.fail(c, "send", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) Retry(c *gin.Context) {
	res, err := h.engine.Retry(c.Request.Context(), c.Param("id"), h.obs)
	if err != nil {
		h.fail(c, "retry", err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Due previews the reminders due on ?date=YYYY-MM-DD, today by default.
func (h *Handler) Due(c *gin.Context) {
	asOf := h.engine.Today()
	if s := c.Query("date"); s != "" {
		t, err := time.ParseInLocation(dateLayout, s, asOf.Location())
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
			return
		}
		asOf = t
	}
	due, err := h.engine.DueReminders(c.Request.Context(), asOf)
	if err != nil {
		h.fail(c, "due", err)
		return
	}
	if due == nil {
		due = []model.ReminderConfig{}
	}
	c.JSON(http.StatusOK, gin.H{"date": asOf.Format(dateLayout), "data": due, "total": len(due)})
}

// Logs lists delivery logs newest first. Filters: reminder_id, channel,
// status, recipient, start and end (RFC3339), limit.
func (h *Handler) Logs(c *gin.Context) {
	q := store.LogQuery{
		ReminderID: c.Query("reminder_id"),
		Channel:    model.Channel(strings.ToLower(c.Query("channel"))),
		Status:     model.DeliveryStatus(strings.ToLower(c.Query("status"))),
		Recipient:  c.Query("recipient"),
		Limit:      defaultLogLimit,
	}
	for key, dst := range map[string]*time.Time{"start": &q.Start, "end": &q.End} {
		if s := c.Query(key); s != "" {
			t, err := time.Parse(time.RFC3339, s)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + key})
				return
			}
			*dst = t
		}
	}
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = min(n, maxLogLimit)
	}
	rows, err := h.logs.Query(c.Request.Context(), q)
	if err != nil {
		h.fail(c, "logs", err)
		return
	}
	if rows == nil {
		rows = []model.DeliveryLog{}
	}
	c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
}

func (h *Handler) fail(c *gin.Context, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, orchestrator.ErrCycleInProgress), errors.Is(err, orchestrator.ErrNotRetryable):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		h.log.Errorf("%s: %v", action, err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
