package uploads

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/storage"
	"github.com/rs/zerolog"
)

// multipartOverhead is allowed on top of the file limit for form headers.
const multipartOverhead = 1 << 20

// Handler handles file uploads for resources
type Handler struct {
	uploader *storage.Uploader
	maxBytes int64
}

// NewHandler creates a new uploads handler. maxBytes bounds the file size.
func NewHandler(uploader *storage.Uploader, maxBytes int64) *Handler {
	return &Handler{uploader: uploader, maxBytes: maxBytes}
}

// Upload stores a file and returns the URL to save on the resource
// @Summary Upload a file
// @Description Store a file in object storage. The returned url becomes the resource url.
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "File"
// @Success 201 {object} catalog.Upload
// @Failure 400 {object} map[string]string "Missing or empty file"
// @Failure 413 {object} map[string]string "File too large"
// @Security BearerAuth
// @Router /uploads [post]
func (h *Handler) Upload(c *gin.Context) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes+multipartOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": storage.ErrTooLarge.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "A file field is required"})
		return
	}
	if h.maxBytes > 0 && fh.Size > h.maxBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": storage.ErrTooLarge.Error()})
		return
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read file"})
		return
	}
	defer f.Close()

	up, err := h.uploader.Upload(c.Request.Context(), fh.Filename, fh.Header.Get("Content-Type"), f)
	switch {
	case errors.Is(err, storage.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, storage.ErrTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	case err != nil:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Str("filename", fh.Filename).Msg("upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	zerolog.Ctx(c.Request.Context()).Info().Str("key", up.Key).Int64("size", fh.Size).Msg("file uploaded")
	c.JSON(http.StatusCreated, up)
}

// RegisterRoutes registers upload routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/uploads", auth.AuthMiddleware(), auth.RequireAdmin(), h.Upload)
}
