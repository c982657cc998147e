package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/database"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(database.MemoryDSN)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db)
	auth := r.Group("/auth")
	handler.RegisterRoutes(auth)
	return r
}

func createUser(t *testing.T, db *gorm.DB, email, password string, role models.SystemRole) models.User {
	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := models.User{Email: email, PasswordHash: hash, Name: "Test User", SystemRole: role}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("Failed to create user: %v", err)
	}
	return user
}

func login(t *testing.T, router *gin.Engine, email, password string) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(LoginRequest{Email: email, Password: password})
	req, _ := http.NewRequest("POST", "/auth/login", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}

	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}
}

func TestJWTToken(t *testing.T) {
	token, err := GenerateToken(1, "test@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("Expected UserID 1, got %d", claims.UserID)
	}

	if claims.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", claims.Email)
	}

	if claims.SystemRole != "user" {
		t.Errorf("Expected role user, got %s", claims.SystemRole)
	}

	if claims.Issuer != "kbase" {
		t.Errorf("Expected issuer kbase, got %s", claims.Issuer)
	}
}

func TestSetSecret(t *testing.T) {
	SetSecret("first-secret")
	t.Cleanup(func() { SetSecret("") })

	token, err := GenerateToken(1, "test@example.com", "admin")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	SetSecret("second-secret")
	if _, err := ValidateToken(token); err == nil {
		t.Error("Expected token signed with another secret to be rejected")
	}
}

func TestConfigureTokenLifetime(t *testing.T) {
	Configure("ttl-secret", time.Hour)
	t.Cleanup(func() { Configure("", 0) })

	token, err := GenerateToken(1, "test@example.com", "user")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	ttl := claims.ExpiresAt.Sub(claims.IssuedAt.Time)
	if ttl != time.Hour {
		t.Errorf("Expected token lifetime 1h, got %v", ttl)
	}
}

func TestInvalidToken(t *testing.T) {
	_, err := ValidateToken("invalid-token")
	if err == nil {
		t.Error("Expected error for invalid token")
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createUser(t, db, "test@example.com", "password123", models.SystemRoleAdmin)

	resp := login(t, router, "test@example.com", "password123")
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)

	if response.Token == "" {
		t.Error("Expected token in response")
	}
	if response.User.SystemRole != "admin" {
		t.Errorf("Expected role admin, got %s", response.User.SystemRole)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createUser(t, db, "test@example.com", "password123", models.SystemRoleUser)

	resp := login(t, router, "test@example.com", "wrongpassword")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	resp = login(t, router, "nobody@example.com", "password123")
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for unknown user, got %d", resp.Code)
	}
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	createUser(t, db, "test@example.com", "password123", models.SystemRoleUser)

	var authResponse AuthResponse
	json.Unmarshal(login(t, router, "test@example.com", "password123").Body.Bytes(), &authResponse)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+authResponse.Token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)

	if userResponse.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", userResponse.Email)
	}
}

func TestMeWithoutAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	req, _ = http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for malformed header, got %d", resp.Code)
	}
}

func TestChangePassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	user := createUser(t, db, "test@example.com", "password123", models.SystemRoleUser)
	token, _ := GenerateToken(user.ID, user.Email, string(user.SystemRole))

	body, _ := json.Marshal(ChangePasswordRequest{CurrentPassword: "nope", NewPassword: "newpassword1"})
	req, _ := http.NewRequest("PUT", "/auth/password", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}

	body, _ = json.Marshal(ChangePasswordRequest{CurrentPassword: "password123", NewPassword: "newpassword1"})
	req, _ = http.NewRequest("PUT", "/auth/password", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	resp = httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	if login(t, router, "test@example.com", "newpassword1").Code != http.StatusOK {
		t.Error("Expected login with new password to succeed")
	}
}

func TestRequireAdmin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	userToken, _ := GenerateToken(1, "u@example.com", "user")
	adminToken, _ := GenerateToken(2, "a@example.com", "admin")

	cases := []struct {
		token string
		want  int
	}{
		{userToken, http.StatusForbidden},
		{adminToken, http.StatusNoContent},
	}
	for _, tc := range cases {
		req, _ := http.NewRequest("GET", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+tc.token)
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, req)
		if resp.Code != tc.want {
			t.Errorf("Expected status %d, got %d", tc.want, resp.Code)
		}
	}
}

func TestEnsureAdmin(t *testing.T) {
	db := setupTestDB(t)

	created, err := EnsureAdmin(db, "admin@kbase.local", "changeme")
	if err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if !created {
		t.Error("Expected admin to be created")
	}

	created, err = EnsureAdmin(db, "other@kbase.local", "changeme")
	if err != nil {
		t.Fatalf("EnsureAdmin failed: %v", err)
	}
	if created {
		t.Error("Expected no second admin")
	}

	var admin models.User
	db.Where("email = ?", "admin@kbase.local").First(&admin)
	if admin.SystemRole != models.SystemRoleAdmin || !CheckPassword("changeme", admin.PasswordHash) {
		t.Errorf("Expected seeded admin with configured password, got %+v", admin)
	}
}
