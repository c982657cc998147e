package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/database"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"gorm.io/gorm"
)

type fakeCompleter struct {
	turns []Turn
	reply string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, turns []Turn) (string, error) {
	f.turns = turns
	return f.reply, f.err
}

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(database.MemoryDSN)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	models.AutoMigrate(db)
	return db
}

func setupTestRouter(db *gorm.DB, completer Completer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db, completer, 10, 50).RegisterRoutes(r.Group("/api"))
	return r
}

func ask(router *gin.Engine, body any) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", "/api/chat", bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func TestAsk(t *testing.T) {
	db := setupTestDB(t)
	row := models.NewResource(catalog.Resource{ID: "a", Title: "Organic Chemistry", Type: catalog.TypePDF, URL: "/x.pdf", Status: catalog.StatusOnline})
	db.Create(&row)
	fake := &fakeCompleter{reply: "See Organic Chemistry."}
	router := setupTestRouter(db, fake)

	resp := ask(router, Request{Message: "Where do I start?", History: []Message{{Role: "user", Text: "hello"}, {Role: "assistant", Text: "hi"}}})
	if resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var out Response
	json.Unmarshal(resp.Body.Bytes(), &out)
	if out.Text != "See Organic Chemistry." {
		t.Errorf("Expected relayed text, got %q", out.Text)
	}
	if len(fake.turns) != 4 {
		t.Fatalf("Expected system, two history turns and the question, got %d", len(fake.turns))
	}
	if !strings.Contains(fake.turns[0].Content, "Organic Chemistry") {
		t.Errorf("Expected catalog in system prompt, got %q", fake.turns[0].Content)
	}
	if fake.turns[3].Content != "Where do I start?" {
		t.Errorf("Expected question last, got %+v", fake.turns[3])
	}
}

func TestAskValidation(t *testing.T) {
	router := setupTestRouter(setupTestDB(t), &fakeCompleter{})

	resp := ask(router, map[string]string{"message": ""})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestAskUpstreamFailure(t *testing.T) {
	router := setupTestRouter(setupTestDB(t), &fakeCompleter{err: errors.New("boom")})

	resp := ask(router, Request{Message: "hi"})
	if resp.Code != http.StatusBadGateway {
		t.Errorf("Expected status 502, got %d", resp.Code)
	}
}

func TestAskDisabled(t *testing.T) {
	router := setupTestRouter(setupTestDB(t), nil)

	resp := ask(router, Request{Message: "hi"})
	if resp.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", resp.Code)
	}
}
