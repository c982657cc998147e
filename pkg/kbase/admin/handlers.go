package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/auth"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/filter"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/resources"
	"github.com/mikepea/kbase/pkg/kbase/tagreg"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db *gorm.DB
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB) *Handler {
	return &Handler{db: db}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID         uint   `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	SystemRole string `json:"system_role"`
	CreatedAt  string `json:"created_at"`
}

// CreateUserRequest represents the request to add a console user
type CreateUserRequest struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=8"`
	Name       string `json:"name" binding:"required"`
	SystemRole string `json:"system_role" binding:"omitempty,oneof=admin user"`
}

// UpdateUserRequest represents the request to update a user
type UpdateUserRequest struct {
	Name       *string `json:"name"`
	SystemRole *string `json:"system_role"`
}

// PopularEntry is one row of the most viewed list
type PopularEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Views uint   `json:"views"`
}

// StatsResponse represents catalog and console statistics
type StatsResponse struct {
	TotalResources   int64            `json:"total_resources"`
	OnlineResources  int64            `json:"online_resources"`
	OfflineResources int64            `json:"offline_resources"`
	DeletedResources int64            `json:"deleted_resources"`
	ResourcesByType  map[string]int64 `json:"resources_by_type"`
	TotalViews       int64            `json:"total_views"`
	TotalDownloads   int64            `json:"total_downloads"`
	TotalTags        int              `json:"total_tags"`
	Popular          []PopularEntry   `json:"popular"`
	TotalUsers       int64            `json:"total_users"`
	AdminUsers       int64            `json:"admin_users"`
}

func userToResponse(user models.User) UserResponse {
	return UserResponse{
		ID:         user.ID,
		Email:      user.Email,
		Name:       user.Name,
		SystemRole: string(user.SystemRole),
		CreatedAt:  user.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// ListUsers returns all users (admin only)
// @Summary List console users
// @Tags admin
// @Produce json
// @Param q query string false "Search email or name"
// @Param role query string false "Filter by role"
// @Success 200 {array} UserResponse
// @Security BearerAuth
// @Router /admin/users [get]
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User
	query := h.db.Order("created_at DESC")

	if search := c.Query("q"); search != "" {
		query = query.Where("email LIKE ? OR name LIKE ?", "%"+search+"%", "%"+search+"%")
	}
	if role := c.Query("role"); role != "" {
		query = query.Where("system_role = ?", role)
	}

	if err := query.Find(&users).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = userToResponse(user)
	}
	c.JSON(http.StatusOK, responses)
}

// CreateUser adds a console user (admin only)
// @Summary Create a console user
// @Tags admin
// @Accept json
// @Produce json
// @Param request body CreateUserRequest true "User"
// @Success 201 {object} UserResponse
// @Failure 409 {object} map[string]string "Email already registered"
// @Security BearerAuth
// @Router /admin/users [post]
func (h *Handler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing models.User
	if err := h.db.Unscoped().Where("email = ?", email).First(&existing).Error; err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process password"})
		return
	}

	role := models.SystemRoleUser
	if req.SystemRole != "" {
		role = models.SystemRole(req.SystemRole)
	}
	user := models.User{
		Email:        email,
		PasswordHash: hash,
		Name:         strings.TrimSpace(req.Name),
		SystemRole:   role,
	}
	if err := h.db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	c.JSON(http.StatusCreated, userToResponse(user))
}

// GetUser returns a single user by ID (admin only)
// @Summary Get a console user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} map[string]string "User not found"
// @Security BearerAuth
// @Router /admin/users/{id} [get]
func (h *Handler) GetUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, userToResponse(user))
}

// UpdateUser updates a user's profile (admin only)
// @Summary Update a console user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "User ID"
// @Param request body UpdateUserRequest true "Changes"
// @Success 200 {object} UserResponse
// @Security BearerAuth
// @Router /admin/users/{id} [put]
func (h *Handler) UpdateUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Prevent admin from demoting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID && req.SystemRole != nil && *req.SystemRole != string(models.SystemRoleAdmin) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.SystemRole != nil {
		if !models.SystemRole(*req.SystemRole).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid system role"})
			return
		}
		updates["system_role"] = *req.SystemRole
	}

	if len(updates) > 0 {
		if err := h.db.Model(&user).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
			return
		}
	}

	h.db.First(&user, id)
	c.JSON(http.StatusOK, userToResponse(user))
}

// DeleteUser soft-deletes a user (admin only)
// @Summary Delete a console user
// @Tags admin
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} map[string]string
// @Failure 400 {object} map[string]string "Cannot delete yourself"
// @Security BearerAuth
// @Router /admin/users/{id} [delete]
func (h *Handler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Prevent admin from deleting themselves
	currentUserID, _ := auth.GetUserID(c)
	if uint(id) == currentUserID {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot delete yourself"})
		return
	}

	var user models.User
	if err := h.db.First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if err := h.db.Delete(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}

// GetStats returns catalog and console statistics (admin only)
// @Summary Catalog statistics
// @Tags admin
// @Produce json
// @Success 200 {object} StatsResponse
// @Security BearerAuth
// @Router /admin/stats [get]
func (h *Handler) GetStats(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())
	stats := StatsResponse{ResourcesByType: make(map[string]int64)}

	db.Model(&models.Resource{}).Count(&stats.TotalResources)
	db.Model(&models.Resource{}).Where("status = ?", catalog.StatusOnline).Count(&stats.OnlineResources)
	db.Model(&models.Resource{}).Where("status = ?", catalog.StatusOffline).Count(&stats.OfflineResources)
	db.Unscoped().Model(&models.Resource{}).Where("deleted_at IS NOT NULL").Count(&stats.DeletedResources)
	db.Model(&models.Resource{}).Select("COALESCE(SUM(views), 0)").Scan(&stats.TotalViews)
	db.Model(&models.Resource{}).Select("COALESCE(SUM(downloads), 0)").Scan(&stats.TotalDownloads)
	db.Model(&models.User{}).Count(&stats.TotalUsers)
	db.Model(&models.User{}).Where("system_role = ?", models.SystemRoleAdmin).Count(&stats.AdminUsers)

	var byType []struct {
		Type  string
		Count int64
	}
	db.Model(&models.Resource{}).Select("type, COUNT(*) AS count").Group("type").Scan(&byType)
	for _, row := range byType {
		stats.ResourcesByType[row.Type] = row.Count
	}

	list, err := resources.LoadAll(db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch resources"})
		return
	}
	stats.TotalTags = len(tagreg.Build(list).Tags)
	stats.Popular = []PopularEntry{}
	for _, r := range filter.Popular(list, filter.PopularLimit) {
		stats.Popular = append(stats.Popular, PopularEntry{ID: r.ID, Title: r.Title, Views: r.Views})
	}

	c.JSON(http.StatusOK, stats)
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", h.GetStats)
	rg.GET("/users", h.ListUsers)
	rg.POST("/users", h.CreateUser)
	rg.GET("/users/:id", h.GetUser)
	rg.PUT("/users/:id", h.UpdateUser)
	rg.DELETE("/users/:id", h.DeleteUser)
}
