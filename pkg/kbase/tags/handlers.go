package tags

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/resources"
	"github.com/mikepea/kbase/pkg/kbase/tagreg"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db     *gorm.DB
	events events.Publisher
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Discard
	}
	return &Handler{db: db, events: pub}
}

// RenameTagRequest represents the request to rename a tag everywhere
type RenameTagRequest struct {
	Name string `json:"name" binding:"required"`
}

// TagChangeResponse lists the resources a tag change rewrote
type TagChangeResponse struct {
	Updated []string `json:"updated"`
}

// List returns every tag with the number of resources using it
// @Summary List tags
// @Description Registry of distinct tags over the whole catalog, sorted by name
// @Tags tags
// @Produce json
// @Success 200 {array} tagreg.Entry
// @Router /tags [get]
func (h *Handler) List(c *gin.Context) {
	list, err := resources.LoadAll(h.db.WithContext(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}
	c.JSON(http.StatusOK, tagreg.Build(list).Entries())
}

// Rename renames a tag on every resource carrying it
// @Summary Rename a tag
// @Tags tags
// @Accept json
// @Produce json
// @Param name path string true "Current tag name"
// @Param request body RenameTagRequest true "New name"
// @Success 200 {object} TagChangeResponse
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /tags/{name} [put]
func (h *Handler) Rename(c *gin.Context) {
	var req RenameTagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	newName := strings.TrimSpace(req.Name)
	if err := catalog.ValidateTags([]string{newName}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	oldName := c.Param("name")
	h.apply(c, func(all []catalog.Resource) []catalog.Resource {
		return tagreg.Rename(all, oldName, newName)
	})
}

// Delete removes a tag from every resource carrying it
// @Summary Delete a tag
// @Tags tags
// @Produce json
// @Param name path string true "Tag name"
// @Success 200 {object} TagChangeResponse
// @Security BearerAuth
// @Router /tags/{name} [delete]
func (h *Handler) Delete(c *gin.Context) {
	tag := c.Param("name")
	h.apply(c, func(all []catalog.Resource) []catalog.Resource {
		return tagreg.Delete(all, tag)
	})
}

// apply computes the affected resources from a fresh snapshot and writes them
// in one transaction
func (h *Handler) apply(c *gin.Context, change func([]catalog.Resource) []catalog.Resource) {
	updated := []string{}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		all, err := resources.LoadAll(tx)
		if err != nil {
			return err
		}
		for _, r := range change(all) {
			if _, err := resources.Replace(tx, r); err != nil {
				return err
			}
			updated = append(updated, r.ID)
		}
		return nil
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update tags"})
		return
	}

	if len(updated) > 0 {
		h.events.Publish(events.Event{Type: events.ResourcesBatch, IDs: updated})
	}
	c.JSON(http.StatusOK, TagChangeResponse{Updated: updated})
}

// RegisterRoutes registers tag routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)

	admin := rg.Group("/tags", auth.AuthMiddleware(), auth.RequireAdmin())
	admin.PUT("/:name", h.Rename)
	admin.DELETE("/:name", h.Delete)
}
