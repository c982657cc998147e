// Package counters records resource views and downloads and serves the
// /open/:id redirect.
package counters

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"gorm.io/gorm"
)

// Column names of the two counters.
const (
	Views     = "views"
	Downloads = "downloads"
)

// Handler handles counter requests
type Handler struct {
	db       *gorm.DB
	events   events.Publisher
	notifier *notify.Notifier
}

// NewHandler creates a new counters handler. Redirect increments run through
// notifier so they never delay the redirect.
func NewHandler(db *gorm.DB, pub events.Publisher, notifier *notify.Notifier) *Handler {
	if pub == nil {
		pub = events.Discard
	}
	return &Handler{db: db, events: pub, notifier: notifier}
}

// CounterResponse carries the counters after an increment
type CounterResponse struct {
	ID        string `json:"id"`
	Views     uint   `json:"views"`
	Downloads uint   `json:"downloads"`
}

// Increment adds one to column for id and returns the new counters
func Increment(db *gorm.DB, id, column string) (CounterResponse, error) {
	res := db.Model(&models.Resource{}).Where("id = ?", id).
		UpdateColumn(column, gorm.Expr(column+" + 1"))
	if res.Error != nil {
		return CounterResponse{}, res.Error
	}
	if res.RowsAffected == 0 {
		return CounterResponse{}, catalog.ErrNotFound
	}

	var row models.Resource
	if err := db.Select("id", "views", "downloads").Where("id = ?", id).First(&row).Error; err != nil {
		return CounterResponse{}, err
	}
	return CounterResponse{ID: row.ID, Views: row.Views, Downloads: row.Downloads}, nil
}

func (h *Handler) increment(c *gin.Context, column string, kind events.Type) {
	id := c.Param("id")
	counts, err := Increment(h.db.WithContext(c.Request.Context()), id, column)
	if errors.Is(err, catalog.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update counter"})
		return
	}

	h.events.Publish(events.Event{Type: kind, IDs: []string{id}})
	c.JSON(http.StatusOK, counts)
}

// View records a view
// @Summary Record a view
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} CounterResponse
// @Failure 404 {object} map[string]string "Resource not found"
// @Router /resources/{id}/view [post]
func (h *Handler) View(c *gin.Context) {
	h.increment(c, Views, events.ResourceViewed)
}

// Download records a download
// @Summary Record a download
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} CounterResponse
// @Failure 404 {object} map[string]string "Resource not found"
// @Router /resources/{id}/download [post]
func (h *Handler) Download(c *gin.Context) {
	h.increment(c, Downloads, events.ResourceDownloaded)
}

// Open redirects to an online resource's url and records a view.
// The view is counted in the background; the redirect never waits for it.
func (h *Handler) Open(c *gin.Context) {
	id := c.Param("id")

	var row models.Resource
	if err := h.db.Where("id = ? AND status = ?", id, catalog.StatusOnline).First(&row).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		return
	}

	h.notifier.Dispatch("open "+id, func(ctx context.Context) error {
		if _, err := Increment(h.db.WithContext(ctx), id, Views); err != nil {
			return err
		}
		h.events.Publish(events.Event{Type: events.ResourceViewed, IDs: []string{id}})
		return nil
	})

	c.Redirect(http.StatusFound, row.URL)
}

// RegisterRoutes registers the counter endpoints on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resources/:id/view", h.View)
	rg.POST("/resources/:id/download", h.Download)
}

// RegisterRedirect registers /open/:id on the root router
func (h *Handler) RegisterRedirect(r *gin.Engine) {
	r.GET("/open/:id", h.Open)
}
