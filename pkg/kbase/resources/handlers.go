package resources

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/idgen"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Handler handles resource catalog requests
type Handler struct {
	db     *gorm.DB
	events events.Publisher
	newID  func() (string, error)
	now    func() time.Time
}

// NewHandler creates a new resources handler. A nil publisher discards events.
func NewHandler(db *gorm.DB, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Discard
	}
	return &Handler{
		db:     db,
		events: pub,
		newID:  idgen.ResourceID,
		now:    time.Now,
	}
}

// SetRelatedRequest represents the request to replace a resource's related ids
type SetRelatedRequest struct {
	RelatedIDs []string `json:"relatedIds"`
}

// BatchUpdateRequest represents a set of full updates applied together
type BatchUpdateRequest struct {
	Resources []catalog.Resource `json:"resources" binding:"required,min=1"`
}

// respondError maps domain errors onto HTTP statuses
func respondError(c *gin.Context, err error, fallback string) {
	var verr *catalog.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
	case errors.Is(err, catalog.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}

// List returns every resource
// @Summary List resources
// @Description Get the full catalog, newest first. Offline resources are included; clients filter them.
// @Tags resources
// @Produce json
// @Param status query string false "Only resources with this status (online or offline)"
// @Success 200 {array} catalog.Resource
// @Router /resources [get]
func (h *Handler) List(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	if status := c.Query("status"); status != "" {
		if !catalog.Status(status).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
			return
		}
		db = db.Where("status = ?", status)
	}

	list, err := LoadAll(db)
	if err != nil {
		respondError(c, err, "Failed to fetch resources")
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one resource
// @Summary Get a resource
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} catalog.Resource
// @Failure 404 {object} map[string]string "Resource not found"
// @Router /resources/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	row, err := Find(h.db.WithContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to fetch resource")
		return
	}
	c.JSON(http.StatusOK, row.ToCatalog())
}

// Create creates a new resource
// @Summary Create a resource
// @Description Store a new resource. The server assigns the id and dateAdded and starts counters at zero.
// @Tags resources
// @Accept json
// @Produce json
// @Param request body catalog.Resource true "Resource"
// @Success 201 {object} catalog.Resource
// @Failure 400 {object} map[string]string "Validation error"
// @Security BearerAuth
// @Router /resources [post]
func (h *Handler) Create(c *gin.Context) {
	var req catalog.Resource
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.newID()
	if err != nil {
		respondError(c, err, "Failed to allocate id")
		return
	}
	req.ID = id
	req.DateAdded = h.now().UTC()
	req.Views = 0
	req.Downloads = 0
	if err := Prepare(&req); err != nil {
		respondError(c, err, "Invalid resource")
		return
	}

	var created catalog.Resource
	err = h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		related, err := CleanRelated(tx, req.ID, req.RelatedResourceIDs)
		if err != nil {
			return err
		}
		req.RelatedResourceIDs = related
		created, err = Insert(tx, req)
		return err
	})
	if err != nil {
		respondError(c, err, "Failed to create resource")
		return
	}

	h.events.Publish(events.Event{Type: events.ResourceCreated, IDs: []string{created.ID}, Resource: &created})
	c.JSON(http.StatusCreated, created)
}

// Update replaces a resource
// @Summary Update a resource
// @Description Replace every editable field. Views, downloads and dateAdded are kept; omitting relatedResourceIds keeps the current relations.
// @Tags resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param request body catalog.Resource true "Resource"
// @Success 200 {object} catalog.Resource
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Resource not found"
// @Security BearerAuth
// @Router /resources/{id} [put]
func (h *Handler) Update(c *gin.Context) {
	var req catalog.Resource
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ID = c.Param("id")

	var updated catalog.Resource
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		var err error
		updated, err = h.update(tx, req)
		return err
	})
	if err != nil {
		respondError(c, err, "Failed to update resource")
		return
	}

	h.events.Publish(events.Event{Type: events.ResourceUpdated, IDs: []string{updated.ID}, Resource: &updated})
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) update(tx *gorm.DB, req catalog.Resource) (catalog.Resource, error) {
	existing, err := Find(tx, req.ID)
	if err != nil {
		return catalog.Resource{}, err
	}
	if req.RelatedResourceIDs == nil {
		req.RelatedResourceIDs = append([]string{}, existing.RelatedResourceIDs...)
	}
	if err := Prepare(&req); err != nil {
		return catalog.Resource{}, err
	}
	related, err := CleanRelated(tx, req.ID, req.RelatedResourceIDs)
	if err != nil {
		return catalog.Resource{}, err
	}
	req.RelatedResourceIDs = related
	return Replace(tx, req)
}

// Delete deletes a resource
// @Summary Delete a resource
// @Description Delete a resource and remove it from every other resource's related list
// @Tags resources
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} map[string]string "Resource deleted"
// @Failure 404 {object} map[string]string "Resource not found"
// @Security BearerAuth
// @Router /resources/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id := c.Param("id")

	var touched []string
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if _, err := Find(tx, id); err != nil {
			return err
		}
		if err := tx.Where("id = ?", id).Delete(&models.Resource{}).Error; err != nil {
			return err
		}
		var err error
		touched, err = PruneRelated(tx, id)
		return err
	})
	if err != nil {
		respondError(c, err, "Failed to delete resource")
		return
	}

	h.events.Publish(events.Event{Type: events.ResourceDeleted, IDs: append([]string{id}, touched...)})
	c.JSON(http.StatusOK, gin.H{"message": "Resource deleted"})
}

// SetRelated replaces the related resource list
// @Summary Set related resources
// @Description Replace the related ids of a resource. Unknown ids are rejected; the resource's own id is dropped.
// @Tags resources
// @Accept json
// @Produce json
// @Param id path string true "Resource ID"
// @Param request body SetRelatedRequest true "Related ids"
// @Success 200 {object} catalog.Resource
// @Failure 400 {object} map[string]string "Unknown ids"
// @Failure 404 {object} map[string]string "Resource not found"
// @Security BearerAuth
// @Router /resources/{id}/related [put]
func (h *Handler) SetRelated(c *gin.Context) {
	id := c.Param("id")

	var req SetRelatedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var updated models.Resource
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		row, err := Find(tx, id)
		if err != nil {
			return err
		}
		related, err := CleanRelated(tx, id, req.RelatedIDs)
		if err != nil {
			return err
		}
		row.RelatedResourceIDs = related
		if err := tx.Model(&models.Resource{}).Where("id = ?", id).
			Update("related_resource_ids", row.RelatedResourceIDs).Error; err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		respondError(c, err, "Failed to update related resources")
		return
	}

	out := updated.ToCatalog()
	h.events.Publish(events.Event{Type: events.RelatedUpdated, IDs: []string{id}, Resource: &out})
	c.JSON(http.StatusOK, out)
}

// BatchUpdate applies several full updates in one transaction
// @Summary Batch update resources
// @Description Replace several resources at once, as used by tag rename and delete. Any failure leaves every resource unchanged.
// @Tags resources
// @Accept json
// @Produce json
// @Param request body BatchUpdateRequest true "Resources"
// @Success 200 {array} catalog.Resource
// @Failure 400 {object} map[string]string "Validation error"
// @Failure 404 {object} map[string]string "Resource not found"
// @Security BearerAuth
// @Router /resources/batch [put]
func (h *Handler) BatchUpdate(c *gin.Context) {
	var req BatchUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated := make([]catalog.Resource, 0, len(req.Resources))
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		for _, r := range req.Resources {
			if r.ID == "" {
				return &catalog.ValidationError{Field: "id", Message: "is required in a batch"}
			}
			u, err := h.update(tx, r)
			if err != nil {
				return err
			}
			updated = append(updated, u)
		}
		return nil
	})
	if err != nil {
		respondError(c, err, "Failed to update resources")
		return
	}

	ids := make([]string, len(updated))
	for i, r := range updated {
		ids[i] = r.ID
	}
	h.events.Publish(events.Event{Type: events.ResourcesBatch, IDs: ids})
	c.JSON(http.StatusOK, updated)
}

// RegisterRoutes registers resource routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/resources", h.List)
	rg.GET("/resources/:id", h.Get)

	admin := rg.Group("/resources", auth.AuthMiddleware(), auth.RequireAdmin())
	admin.POST("", h.Create)
	admin.PUT("/batch", h.BatchUpdate)
	admin.PUT("/:id", h.Update)
	admin.DELETE("/:id", h.Delete)
	admin.PUT("/:id/related", h.SetRelated)
}
