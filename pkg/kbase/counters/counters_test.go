package counters

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/database"
	"github.com/mikepea/kbase/pkg/kbase/events"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"github.com/mikepea/kbase/pkg/kbase/notify"
	"github.com/rs/zerolog"
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

func createTestResource(t *testing.T, db *gorm.DB, id, url string, status catalog.Status) {
	row := models.NewResource(catalog.Resource{
		ID:     id,
		Title:  "Test Resource",
		Type:   catalog.TypeLink,
		URL:    url,
		Status: status,
	})
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create test resource: %v", err)
	}
}

func setupTestRouter(db *gorm.DB, hub *events.Hub, n *notify.Notifier) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, hub, n)
	handler.RegisterRoutes(r.Group("/api"))
	handler.RegisterRedirect(r)
	return r
}

func TestViewAndDownload(t *testing.T) {
	db := setupTestDB(t)
	hub := events.NewHub()
	sub, cancel := hub.Subscribe()
	defer cancel()
	router := setupTestRouter(db, hub, notify.New(zerolog.Nop(), time.Second))
	createTestResource(t, db, "res-1", "https://example.com", catalog.StatusOnline)

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("POST", "/api/resources/res-1/view", nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", resp.Code)
		}
	}

	req, _ := http.NewRequest("POST", "/api/resources/res-1/download", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	var counts CounterResponse
	json.Unmarshal(resp.Body.Bytes(), &counts)
	if counts.Views != 2 || counts.Downloads != 1 {
		t.Errorf("Expected 2 views and 1 download, got %+v", counts)
	}

	ev := <-sub
	if ev.Type != events.ResourceViewed || ev.IDs[0] != "res-1" {
		t.Errorf("Expected view event for res-1, got %+v", ev)
	}
}

func TestIncrementUnknownResource(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, events.NewHub(), notify.New(zerolog.Nop(), time.Second))

	req, _ := http.NewRequest("POST", "/api/resources/missing/view", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}

func TestOpenRedirectsAndCountsView(t *testing.T) {
	db := setupTestDB(t)
	n := notify.New(zerolog.Nop(), time.Second)
	router := setupTestRouter(db, events.NewHub(), n)
	createTestResource(t, db, "res-1", "https://example.com/page", catalog.StatusOnline)

	req, _ := http.NewRequest("GET", "/open/res-1?foo=bar", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusFound {
		t.Errorf("Expected status 302, got %d", resp.Code)
	}
	if location := resp.Header().Get("Location"); location != "https://example.com/page" {
		t.Errorf("Expected Location 'https://example.com/page', got %s", location)
	}

	n.Wait()

	var row models.Resource
	db.First(&row, "id = ?", "res-1")
	if row.Views != 1 {
		t.Errorf("Expected 1 view, got %d", row.Views)
	}
}

func TestOpenOfflineResource(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db, events.NewHub(), notify.New(zerolog.Nop(), time.Second))
	createTestResource(t, db, "res-2", "https://example.com", catalog.StatusOffline)

	req, _ := http.NewRequest("GET", "/open/res-2", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.Code)
	}
}
