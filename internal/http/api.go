package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"log-analyzer/internal/domain"
	"log-analyzer/internal/service"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// adminUsername is the only principal allowed to bulk delete logs.
const adminUsername = "admin"

// Handler wires HTTP routes to domain services.
type Handler struct {
	logs   service.LogService
	users  service.UserService
	tokens service.TokenService
	logger *logrus.Logger
}

func NewHandler(logs service.LogService, users service.UserService, tokens service.TokenService, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		logs:   logs,
		users:  users,
		tokens: tokens,
		logger: logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware())
	router.Use(RequestID())
	router.Use(RequestLogger(h.logger))

	auth := router.Group("/auth")
	{
		auth.POST("/register", h.register)
		auth.POST("/login", h.login)
	}

	protected := router.Group("/", Auth(h.tokens, h.users))
	{
		protected.POST("/add_log", h.addLog)
		protected.GET("/logs", h.listLogs)
		protected.GET("/stats", h.stats)
		protected.DELETE("/logs", h.deleteLogs)
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=4"`
	Password string `json:"password" binding:"required,min=6"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Register(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		// duplicate username maps to 400 for compatibility with existing clients
		if errors.Is(err, service.ErrUserAlreadyExists) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "user already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "user registered", "id": user.ID})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			unauthorized(c, "invalid username or password")
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Username)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "bearer"})
}

type addLogRequest struct {
	Timestamp string          `json:"timestamp" binding:"required"`
	Level     string          `json:"level" binding:"required,oneof=DEBUG INFO WARNING ERROR"`
	Service   string          `json:"service" binding:"required"`
	Message   string          `json:"message" binding:"required"`
	Metadata  json.RawMessage `json:"metadata"`
}

func (h *Handler) addLog(c *gin.Context) {
	var req addLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	timestamp, err := parseTimestamp(req.Timestamp)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record := &domain.LogRecord{
		Timestamp: timestamp,
		Level:     domain.LogLevel(req.Level),
		Service:   req.Service,
		Message:   req.Message,
		Metadata:  normalizeMetadata(req.Metadata),
	}

	id, err := h.logs.Ingest(c.Request.Context(), record)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "log added", "id": id})
}

func (h *Handler) listLogs(c *gin.Context) {
	filter, ok := h.bindFilter(c, true)
	if !ok {
		return
	}

	limit, offset, ok := h.bindPagination(c)
	if !ok {
		return
	}

	records, total, err := h.logs.Query(c.Request.Context(), filter, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	logs := make([]logResponse, len(records))
	for i := range records {
		logs[i] = logToResponse(records[i])
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs, "total": total})
}

func (h *Handler) stats(c *gin.Context) {
	// level is deliberately not a stats filter
	filter, ok := h.bindFilter(c, false)
	if !ok {
		return
	}

	groupBy := domain.GroupBy(c.Query("group_by"))
	if !groupBy.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid group_by %q", string(groupBy))})
		return
	}

	rows, err := h.logs.Stats(c.Request.Context(), filter, groupBy)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	stats := make([]statsResponse, len(rows))
	for i := range rows {
		stats[i] = statsResponse{
			Count:        rows[i].Count,
			TimeInterval: rows[i].TimeInterval,
			Level:        rows[i].Level,
			Service:      rows[i].Service,
		}
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) deleteLogs(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		unauthorized(c, "Not authenticated")
		return
	}
	if user.Username != adminUsername {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin privileges required"})
		return
	}

	before := c.Query("before")
	if before == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "before is required"})
		return
	}
	cutoff, err := parseTimestamp(before)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deleted, err := h.logs.PurgeBefore(c.Request.Context(), cutoff)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

func (h *Handler) bindFilter(c *gin.Context, withLevel bool) (domain.LogFilter, bool) {
	var filter domain.LogFilter

	if withLevel {
		if level := c.Query("level"); level != "" {
			l := domain.LogLevel(level)
			filter.Level = &l
		}
	}
	if svc := c.Query("service"); svc != "" {
		filter.Service = &svc
	}
	if start := c.Query("start_time"); start != "" {
		t, err := parseTimestamp(start)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return filter, false
		}
		filter.Start = &t
	}
	if end := c.Query("end_time"); end != "" {
		t, err := parseTimestamp(end)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return filter, false
		}
		filter.End = &t
	}
	return filter, true
}

func (h *Handler) bindPagination(c *gin.Context) (limit, offset int, ok bool) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultLimit)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return 0, 0, false
	}
	// out-of-range limits are clamped, not rejected
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	offset, err = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
		return 0, 0, false
	}
	if offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "offset must be non-negative"})
		return 0, 0, false
	}

	return limit, offset, true
}

type logResponse struct {
	ID        int64           `json:"id"`
	Timestamp string          `json:"timestamp"`
	Level     string          `json:"level"`
	Service   string          `json:"service"`
	Message   string          `json:"message"`
	Metadata  json.RawMessage `json:"metadata"`
}

type statsResponse struct {
	Count        int64  `json:"count"`
	TimeInterval string `json:"time_interval,omitempty"`
	Level        string `json:"level,omitempty"`
	Service      string `json:"service,omitempty"`
}

func logToResponse(record domain.LogRecord) logResponse {
	resp := logResponse{
		ID:        record.ID,
		Timestamp: record.Timestamp.UTC().Format(time.RFC3339),
		Level:     string(record.Level),
		Service:   record.Service,
		Message:   record.Message,
	}
	if record.Metadata != nil {
		resp.Metadata = json.RawMessage(record.Metadata)
	}
	return resp
}

// normalizeMetadata maps an absent or JSON-null metadata field to nil so the
// store persists NULL rather than the literal "null".
func normalizeMetadata(raw json.RawMessage) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return trimmed
}

// parseTimestamp accepts ISO-8601 dates; a trailing Z is normalized to +00:00
// first, and zone-less values are interpreted as UTC.
func parseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if strings.HasSuffix(value, "Z") {
		value = strings.TrimSuffix(value, "Z") + "+00:00"
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format %q", value)
}
