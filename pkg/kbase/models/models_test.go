package models

import (
	"bytes"
	"testing"
	"time"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/database"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(database.MemoryDSN)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	return db
}

func TestAutoMigrate(t *testing.T) {
	db := setupTestDB(t)

	err := AutoMigrate(db)
	if err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}

	tables := []string{"users", "resources"}
	for _, table := range tables {
		if !db.Migrator().HasTable(table) {
			t.Errorf("Expected table %s to exist", table)
		}
	}
}

func TestUserModel(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	user := User{
		Email:        "test@example.com",
		PasswordHash: "hashedpassword",
		Name:         "Test User",
	}

	result := db.Create(&user)
	if result.Error != nil {
		t.Fatalf("Failed to create user: %v", result.Error)
	}

	if user.ID == 0 {
		t.Error("Expected user ID to be set")
	}

	var loaded User
	db.First(&loaded, user.ID)
	if loaded.SystemRole != SystemRoleUser {
		t.Errorf("Expected default role user, got %s", loaded.SystemRole)
	}

	duplicate := User{
		Email:        "test@example.com",
		PasswordHash: "anotherhash",
		Name:         "Another User",
	}
	result = db.Create(&duplicate)
	if result.Error == nil {
		t.Error("Expected error when creating user with duplicate email")
	}
}

func TestResourceRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	added := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	in := catalog.Resource{
		ID:                 "res-1",
		Title:              "Linear Algebra Notes",
		Description:        "Lecture notes",
		Type:               catalog.TypePDF,
		Department:         "Mathematics",
		Subject:            "Algebra",
		Level:              catalog.LevelUndergraduate,
		Tags:               []string{"math", "notes"},
		DateAdded:          added,
		URL:                "/uploads/res-1_notes.pdf",
		OriginalFilename:   "notes.pdf",
		Status:             catalog.StatusOnline,
		RelatedResourceIDs: []string{"res-2"},
		Views:              3,
		Downloads:          1,
	}

	row := NewResource(in)
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create resource: %v", err)
	}

	var loaded Resource
	if err := db.First(&loaded, "id = ?", "res-1").Error; err != nil {
		t.Fatalf("Failed to load resource: %v", err)
	}

	out := loaded.ToCatalog()
	if out.Title != in.Title || out.Type != in.Type || out.Level != in.Level {
		t.Errorf("Expected scalar fields to survive, got %+v", out)
	}
	if len(out.Tags) != 2 || out.Tags[0] != "math" || out.Tags[1] != "notes" {
		t.Errorf("Expected tags [math notes], got %v", out.Tags)
	}
	if len(out.RelatedResourceIDs) != 1 || out.RelatedResourceIDs[0] != "res-2" {
		t.Errorf("Expected related [res-2], got %v", out.RelatedResourceIDs)
	}
	if !out.DateAdded.Equal(added) {
		t.Errorf("Expected date %v, got %v", added, out.DateAdded)
	}
	if out.Views != 3 || out.Downloads != 1 {
		t.Errorf("Expected counters 3/1, got %d/%d", out.Views, out.Downloads)
	}
}

func TestResourceEmptySlices(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	row := NewResource(catalog.Resource{
		ID:    "res-9",
		Title: "Site",
		Type:  catalog.TypeLink,
		URL:   "https://example.com",
	})
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("Failed to create resource: %v", err)
	}

	var loaded Resource
	db.First(&loaded, "id = ?", "res-9")
	out := loaded.ToCatalog()
	if out.Tags == nil || out.RelatedResourceIDs == nil {
		t.Error("Expected non-nil slices")
	}
	if loaded.Status != string(catalog.StatusOnline) {
		t.Errorf("Expected default status online, got %s", loaded.Status)
	}
}

func TestResourceSoftDelete(t *testing.T) {
	db := setupTestDB(t)
	AutoMigrate(db)

	row := NewResource(catalog.Resource{ID: "res-3", Title: "Gone", Type: catalog.TypeDoc, URL: "/x"})
	db.Create(&row)
	db.Delete(&Resource{}, "id = ?", "res-3")

	var count int64
	db.Model(&Resource{}).Count(&count)
	if count != 0 {
		t.Errorf("Expected 0 visible resources, got %d", count)
	}
	db.Unscoped().Model(&Resource{}).Count(&count)
	if count != 1 {
		t.Errorf("Expected 1 soft-deleted resource, got %d", count)
	}
}

func TestResourceConversionLogsNothing(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	row := NewResource(catalog.Resource{ID: "res-4", Title: "Quiet", Type: catalog.TypeLink, URL: "https://example.com", Tags: []string{"a"}})
	out := row.ToCatalog()

	if out.ID != "res-4" || out.Title != "Quiet" || len(out.Tags) != 1 {
		t.Errorf("Expected fields to survive conversion, got %+v", out)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no conversion errors logged, got %s", buf.String())
	}
}
