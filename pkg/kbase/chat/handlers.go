package chat

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/resources"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Handler relays chat questions
type Handler struct {
	db             *gorm.DB
	completer      Completer
	maxHistory     int
	catalogContext int
}

// NewHandler creates a chat handler. A nil completer answers 503.
func NewHandler(db *gorm.DB, completer Completer, maxHistory, catalogContext int) *Handler {
	return &Handler{
		db:             db,
		completer:      completer,
		maxHistory:     maxHistory,
		catalogContext: catalogContext,
	}
}

// Request represents a chat question
type Request struct {
	Message string    `json:"message" binding:"required"`
	History []Message `json:"history"`
}

// Response represents the assistant's reply
type Response struct {
	Text string `json:"text"`
}

// Ask answers a question about the catalog
// @Summary Ask the assistant
// @Tags chat
// @Accept json
// @Produce json
// @Param request body Request true "Question and history"
// @Success 200 {object} Response
// @Failure 502 {object} map[string]string "Completion service failed"
// @Failure 503 {object} map[string]string "Assistant not configured"
// @Router /chat [post]
func (h *Handler) Ask(c *gin.Context) {
	if h.completer == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": ErrDisabled.Error()})
		return
	}

	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	list, err := resources.LoadAll(h.db.WithContext(c.Request.Context()))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}

	turns := Conversation(SystemPrompt(list, h.catalogContext), req.History, req.Message, h.maxHistory)
	text, err := h.completer.Complete(c.Request.Context(), turns)
	if err != nil {
		if errors.Is(err, ErrDisabled) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
			return
		}
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("chat completion failed")
		c.JSON(http.StatusBadGateway, gin.H{"error": "The assistant is unavailable right now"})
		return
	}

	c.JSON(http.StatusOK, Response{Text: text})
}

// RegisterRoutes registers chat routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/chat", h.Ask)
}
