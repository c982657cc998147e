package resources

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/mikepea/kbase/pkg/kbase/htmlsanitize"
	"github.com/mikepea/kbase/pkg/kbase/models"
	"gorm.io/gorm"
)

// editableColumns are written by full updates. Counters, dateAdded and the
// id are never client controlled.
var editableColumns = []string{
	"title", "description", "type", "department", "subject", "level", "tags",
	"url", "external_url", "original_filename", "status", "related_resource_ids",
}

// Prepare sanitizes, normalizes and validates r in place.
func Prepare(r *catalog.Resource) error {
	r.Title = htmlsanitize.Text(r.Title)
	r.Description = htmlsanitize.Sanitize(r.Description)
	r.Department = htmlsanitize.Text(r.Department)
	r.Subject = htmlsanitize.Text(r.Subject)
	for i, t := range r.Tags {
		r.Tags[i] = htmlsanitize.Text(t)
	}
	r.Normalize()
	return r.Validate()
}

// LoadAll returns every live resource, newest first.
func LoadAll(db *gorm.DB) ([]catalog.Resource, error) {
	var rows []models.Resource
	if err := db.Order("date_added DESC").Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.ResourcesToCatalog(rows), nil
}

// Find loads one resource. Unknown ids return catalog.ErrNotFound.
func Find(db *gorm.DB, id string) (models.Resource, error) {
	var row models.Resource
	err := db.Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return row, catalog.ErrNotFound
	}
	return row, err
}

// Insert stores a new resource. r must already be prepared.
func Insert(db *gorm.DB, r catalog.Resource) (catalog.Resource, error) {
	row := models.NewResource(r)
	if err := db.Create(&row).Error; err != nil {
		return catalog.Resource{}, err
	}
	return row.ToCatalog(), nil
}

// Replace overwrites the editable fields of an existing resource. r must
// already be prepared.
func Replace(db *gorm.DB, r catalog.Resource) (catalog.Resource, error) {
	if _, err := Find(db, r.ID); err != nil {
		return catalog.Resource{}, err
	}
	row := models.NewResource(r)
	err := db.Model(&models.Resource{}).
		Where("id = ?", r.ID).
		Select(editableColumns).
		Updates(&row).Error
	if err != nil {
		return catalog.Resource{}, err
	}
	updated, err := Find(db, r.ID)
	if err != nil {
		return catalog.Resource{}, err
	}
	return updated.ToCatalog(), nil
}

// CleanRelated trims and deduplicates ids, drops selfID and rejects ids that
// do not name a live resource.
func CleanRelated(db *gorm.DB, selfID string, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || id == selfID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return out, nil
	}

	var found []string
	if err := db.Model(&models.Resource{}).Where("id IN ?", out).Pluck("id", &found).Error; err != nil {
		return nil, err
	}
	var unknown []string
	for _, id := range out {
		if !slices.Contains(found, id) {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, &catalog.ValidationError{
			Field:   "relatedResourceIds",
			Message: fmt.Sprintf("unknown ids: %s", strings.Join(unknown, ", ")),
		}
	}
	return out, nil
}

// PruneRelated removes id from every other resource's related list and
// returns the ids it touched.
func PruneRelated(db *gorm.DB, id string) ([]string, error) {
	var rows []models.Resource
	if err := db.Where("related_resource_ids LIKE ?", `%"`+id+`"%`).Find(&rows).Error; err != nil {
		return nil, err
	}
	var touched []string
	for _, row := range rows {
		if !slices.Contains(row.RelatedResourceIDs, id) {
			continue
		}
		kept := slices.DeleteFunc(slices.Clone([]string(row.RelatedResourceIDs)), func(r string) bool { return r == id })
		row.RelatedResourceIDs = kept
		if err := db.Model(&models.Resource{}).Where("id = ?", row.ID).
			Update("related_resource_ids", row.RelatedResourceIDs).Error; err != nil {
			return nil, err
		}
		touched = append(touched, row.ID)
	}
	return touched, nil
}
