package importexport

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/idgen"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/resources"
	"gorm.io/gorm"
)

// FormatVersion is written into every export document
const FormatVersion = 1

// Handler handles import/export requests
type Handler struct {
	db     *gorm.DB
	events events.Publisher
	newID  func() (string, error)
	now    func() time.Time
}

// NewHandler creates a new import/export handler
func NewHandler(db *gorm.DB, pub events.Publisher) *Handler {
	if pub == nil {
		pub = events.Discard
	}
	return &Handler{db: db, events: pub, newID: idgen.ResourceID, now: time.Now}
}

// ExportDocument is the backup file format
type ExportDocument struct {
	Version    int                `json:"version"`
	ExportedAt time.Time          `json:"exportedAt"`
	Resources  []catalog.Resource `json:"resources"`
}

// ImportRequest represents an import request. The export document is accepted
// as is.
type ImportRequest struct {
	Resources []catalog.Resource `json:"resources" binding:"required"`
	// KeepMetrics restores views and downloads from the file instead of
	// starting them at zero.
	KeepMetrics bool `json:"keepMetrics"`
}

// ImportResult represents the result of an import operation
type ImportResult struct {
	Imported int               `json:"imported"`
	IDs      map[string]string `json:"ids"`
	Dropped  int               `json:"droppedRelations"`
}

// ImportError lists every invalid entry of a rejected import
type ImportError struct {
	Error   string   `json:"error"`
	Details []string `json:"details"`
}

// plan validates the whole file and assigns fresh ids. Nothing is written.
func (h *Handler) plan(db *gorm.DB, req ImportRequest) ([]catalog.Resource, ImportResult, []string, error) {
	result := ImportResult{IDs: make(map[string]string, len(req.Resources))}
	var problems []string

	planned := make([]catalog.Resource, len(req.Resources))
	for i, r := range req.Resources {
		r = r.Clone()
		oldID := r.ID
		newID, err := h.newID()
		if err != nil {
			return nil, result, nil, err
		}
		r.ID = newID
		if r.DateAdded.IsZero() {
			r.DateAdded = h.now().UTC()
		}
		if !req.KeepMetrics {
			r.Views, r.Downloads = 0, 0
		}
		if err := resources.Prepare(&r); err != nil {
			problems = append(problems, fmt.Sprintf("resource %d (%s): %v", i, r.Title, err))
		}
		if oldID != "" {
			if _, dup := result.IDs[oldID]; dup {
				problems = append(problems, fmt.Sprintf("resource %d: duplicate id %q", i, oldID))
			}
			result.IDs[oldID] = newID
		}
		planned[i] = r
	}
	if len(problems) > 0 {
		return nil, result, problems, nil
	}

	var outside []string
	for _, r := range planned {
		for _, id := range r.RelatedResourceIDs {
			if _, ok := result.IDs[id]; !ok && !slices.Contains(outside, id) {
				outside = append(outside, id)
			}
		}
	}
	var live []string
	if len(outside) > 0 {
		if err := db.Model(&models.Resource{}).Where("id IN ?", outside).Pluck("id", &live).Error; err != nil {
			return nil, result, nil, err
		}
	}

	for i := range planned {
		related := make([]string, 0, len(planned[i].RelatedResourceIDs))
		for _, id := range planned[i].RelatedResourceIDs {
			switch mapped, ok := result.IDs[id]; {
			case ok && mapped != planned[i].ID:
				related = append(related, mapped)
			case !ok && slices.Contains(live, id):
				related = append(related, id)
			default:
				result.Dropped++
			}
		}
		planned[i].RelatedResourceIDs = catalog.CleanTags(related)
	}
	return planned, result, nil, nil
}

// Import loads resources from an export document
// @Summary Import resources
// @Description Validate every entry first; if any is invalid nothing is written. Imported resources get fresh ids; relations inside the file are remapped and relations to unknown ids dropped.
// @Tags importexport
// @Accept json
// @Produce json
// @Param request body ImportRequest true "Resources"
// @Success 200 {object} ImportResult
// @Failure 400 {object} ImportError "Invalid entries"
// @Security BearerAuth
// @Router /import [post]
func (h *Handler) Import(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var result ImportResult
	var problems []string
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		planned, res, bad, err := h.plan(tx, req)
		if err != nil {
			return err
		}
		if len(bad) > 0 {
			problems = bad
			return errInvalidImport
		}
		for _, r := range planned {
			if _, err := resources.Insert(tx, r); err != nil {
				return err
			}
		}
		res.Imported = len(planned)
		result = res
		return nil
	})
	if errors.Is(err, errInvalidImport) {
		c.JSON(http.StatusBadRequest, ImportError{Error: "Import rejected", Details: problems})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import resources"})
		return
	}

	if result.Imported > 0 {
		ids := make([]string, 0, len(result.IDs))
		for _, id := range result.IDs {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		h.events.Publish(events.Event{Type: events.ResourcesImported, IDs: ids})
	}
	c.JSON(http.StatusOK, result)
}

var errInvalidImport = errors.New("invalid import")

// Export exports the whole catalog
// @Summary Export resources
// @Tags importexport
// @Produce json
// @Param download query bool false "Send as an attachment"
// @Success 200 {object} ExportDocument
// @Security BearerAuth
// @Router /export [get]
func (h *Handler) Export(c *gin.Context) {
	list, err := resources.LoadAll(h.db.WithContext(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}

	if c.Query("download") == "true" {
		c.Header("Content-Disposition", "attachment; filename=kbase-export.json")
	}

	c.JSON(http.StatusOK, ExportDocument{
		Version:    FormatVersion,
		ExportedAt: h.now().UTC(),
		Resources:  list,
	})
}

// ExportSingle exports one resource
// @Summary Export a resource
// @Tags importexport
// @Produce json
// @Param id path string true "Resource ID"
// @Success 200 {object} ExportDocument
// @Failure 404 {object} map[string]string "Resource not found"
// @Security BearerAuth
// @Router /export/{id} [get]
func (h *Handler) ExportSingle(c *gin.Context) {
	row, err := resources.Find(h.db.WithContext(c.Request.Context()), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resource not found"})
		return
	}

	c.JSON(http.StatusOK, ExportDocument{
		Version:    FormatVersion,
		ExportedAt: h.now().UTC(),
		Resources:  []catalog.Resource{row.ToCatalog()},
	})
}

// RegisterRoutes registers import/export routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("", auth.AuthMiddleware(), auth.RequireAdmin())
	admin.POST("/import", h.Import)
	admin.GET("/export", h.Export)
	admin.GET("/export/:id", h.ExportSingle)
}
