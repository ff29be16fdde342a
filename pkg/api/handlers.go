package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/discovery"
	"github.com/hardwatch/hardwatch/pkg/metrics"
	"github.com/hardwatch/hardwatch/pkg/models"
	"github.com/hardwatch/hardwatch/pkg/services"
)

// APIHandler handles HTTP API requests from the UI shell and from peer nodes
type APIHandler struct {
	ruleService *services.RuleService
	history     *services.HistoryService
	store       *metrics.Store
	directory   *discovery.Directory
	version     string
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(ruleService *services.RuleService, history *services.HistoryService,
	store *metrics.Store, directory *discovery.Directory, version string) *APIHandler {
	return &APIHandler{
		ruleService: ruleService,
		history:     history,
		store:       store,
		directory:   directory,
		version:     version,
	}
}

// Health is the liveness probe
func (h *APIHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"version":   h.version,
		"timestamp": time.Now().UnixMilli(),
	})
}

// GetNode returns the local node identity
func (h *APIHandler) GetNode(c echo.Context) error {
	return c.JSON(http.StatusOK, h.directory.Self())
}

// GetHardware returns the latest sampled snapshot of all metrics
func (h *APIHandler) GetHardware(c echo.Context) error {
	snapshot := h.store.Snapshot()
	values := make(map[string]float64, len(snapshot))
	for name, sample := range snapshot {
		values[name] = sample.Value
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"metrics":   values,
		"timestamp": time.Now().UnixMilli(),
	})
}

// GetNodes returns the currently known peers
func (h *APIHandler) GetNodes(c echo.Context) error {
	return c.JSON(http.StatusOK, h.directory.Nodes())
}

// NotifyAlert receives an AlertEvent from a peer node. The event is recorded
// in the local history and never re-evaluated against local rules.
func (h *APIHandler) NotifyAlert(c echo.Context) error {
	var notification models.AlertNotification
	if err := c.Bind(&notification); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	if err := notification.Validate(); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	logrus.Infof("Received alert from %s: %s", notification.SourceNodeName, notification.Message)
	h.history.Record(notification.Event())

	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "message": "Alert received"})
}

// GetRules returns all rules
func (h *APIHandler) GetRules(c echo.Context) error {
	return c.JSON(http.StatusOK, h.ruleService.GetRules())
}

// GetRule returns a rule by ID
func (h *APIHandler) GetRule(c echo.Context) error {
	id := c.Param("id")
	rule, err := h.ruleService.GetRule(id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", id)})
	}
	return c.JSON(http.StatusOK, rule)
}

// CreateRule creates a new rule
func (h *APIHandler) CreateRule(c echo.Context) error {
	var req models.CreateRuleRequest
	if err := c.Bind(&req); err != nil {
		logrus.Errorf("Error binding create rule request: %v", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	rule, err := h.ruleService.CreateRule(c.Request().Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidRule):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, models.ErrDuplicateRule):
			return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			logrus.Errorf("Error creating rule: %v", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to create rule: %v", err)})
		}
	}

	return c.JSON(http.StatusCreated, rule)
}

// ToggleRule enables or disables a rule
func (h *APIHandler) ToggleRule(c echo.Context) error {
	id := c.Param("id")
	var req models.ToggleRuleRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	rule, err := h.ruleService.ToggleRule(c.Request().Context(), id, req.Enabled)
	if err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", id)})
		}
		logrus.Errorf("Error toggling rule %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to toggle rule: %v", err)})
	}
	return c.JSON(http.StatusOK, rule)
}

// DeleteRule deletes a rule
func (h *APIHandler) DeleteRule(c echo.Context) error {
	id := c.Param("id")
	if err := h.ruleService.DeleteRule(c.Request().Context(), id); err != nil {
		if errors.Is(err, models.ErrRuleNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Rule with ID %s not found", id)})
		}
		logrus.Errorf("Error deleting rule %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to delete rule: %v", err)})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Rule deleted successfully"})
}

// GetAlerts returns the alert history, optionally only unacknowledged records
func (h *APIHandler) GetAlerts(c echo.Context) error {
	unackedOnly := c.QueryParam("unacknowledged") == "true"
	return c.JSON(http.StatusOK, h.history.List(unackedOnly))
}

// AcknowledgeAlert acknowledges an alert record
func (h *APIHandler) AcknowledgeAlert(c echo.Context) error {
	id := c.Param("id")
	if err := h.history.Acknowledge(c.Request().Context(), id); err != nil {
		if errors.Is(err, models.ErrRecordNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": fmt.Sprintf("Alert with ID %s not found", id)})
		}
		logrus.Errorf("Error acknowledging alert %s: %v", id, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("Failed to acknowledge alert: %v", err)})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Alert acknowledged successfully"})
}

// ClearAlerts empties the alert history
func (h *APIHandler) ClearAlerts(c echo.Context) error {
	if err := h.history.Clear(c.Request().Context()); err != nil {
		logrus.Errorf("Error clearing alerts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to clear alerts"})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Alert history cleared"})
}

// ExportAlerts serializes the full alert history
func (h *APIHandler) ExportAlerts(c echo.Context) error {
	data, err := h.history.Export()
	if err != nil {
		logrus.Errorf("Error exporting alerts: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to export alerts"})
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, data)
}

// GetMetricNames returns the names of all sampled metrics
func (h *APIHandler) GetMetricNames(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Names())
}

// GetMetricHistory returns bounded recent history for one metric
func (h *APIHandler) GetMetricHistory(c echo.Context) error {
	name := c.Param("name")
	points := 300
	if raw := c.QueryParam("points"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid points parameter"})
		}
		points = parsed
	}
	return c.JSON(http.StatusOK, h.store.Query(name, points))
}

// SetupRoutes sets up the API routes
func (h *APIHandler) SetupRoutes(e *echo.Echo) {
	// Peer and probe endpoints
	e.GET("/health", h.Health)
	e.GET("/node", h.GetNode)
	e.GET("/hardware", h.GetHardware)
	e.GET("/nodes", h.GetNodes)
	e.POST("/alerts/notify", h.NotifyAlert)

	// Rule endpoints
	e.GET("/api/rules", h.GetRules)
	e.GET("/api/rules/:id", h.GetRule)
	e.POST("/api/rules", h.CreateRule)
	e.POST("/api/rules/:id/toggle", h.ToggleRule)
	e.DELETE("/api/rules/:id", h.DeleteRule)

	// Alert history endpoints
	e.GET("/api/alerts", h.GetAlerts)
	e.POST("/api/alerts/:id/acknowledge", h.AcknowledgeAlert)
	e.DELETE("/api/alerts", h.ClearAlerts)
	e.GET("/api/alerts/export", h.ExportAlerts)

	// Metric endpoints
	e.GET("/api/metrics", h.GetMetricNames)
	e.GET("/api/metrics/:name", h.GetMetricHistory)
}
