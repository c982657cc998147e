package models

import (
	"time"

	"github.com/jinzhu/copier"
	"github.com/mikepea/kbase/pkg/kbase/catalog"
	"github.com/rs/zerolog/log"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Resource is a persisted catalog entry
type Resource struct {
	ID                 string                      `gorm:"primaryKey;size:40" json:"id"`
	CreatedAt          time.Time                   `json:"created_at"`
	UpdatedAt          time.Time                   `json:"updated_at"`
	DeletedAt          gorm.DeletedAt              `gorm:"index" json:"-"`
	Title              string                      `gorm:"not null" json:"title"`
	Description        string                      `json:"description"`
	Type               string                      `gorm:"type:varchar(20);not null;index" json:"type"`
	Department         string                      `gorm:"index" json:"department"`
	Subject            string                      `gorm:"index" json:"subject"`
	Level              string                      `gorm:"type:varchar(20)" json:"level"`
	Tags               datatypes.JSONSlice[string] `json:"tags"`
	DateAdded          time.Time                   `gorm:"index" json:"date_added"`
	URL                string                      `gorm:"not null" json:"url"`
	ExternalURL        string                      `json:"external_url"`
	OriginalFilename   string                      `json:"original_filename"`
	Status             string                      `gorm:"type:varchar(10);default:'online';index" json:"status"`
	RelatedResourceIDs datatypes.JSONSlice[string] `json:"related_resource_ids"`
	Views              uint                        `gorm:"default:0" json:"views"`
	Downloads          uint                        `gorm:"default:0" json:"downloads"`
}

// ToCatalog converts the row to the wire type. A copier failure is logged;
// the slices are still filled in.
func (m Resource) ToCatalog() catalog.Resource {
	var r catalog.Resource
	if err := copier.Copy(&r, &m); err != nil {
		log.Error().Err(err).Str("id", m.ID).Msg("convert resource row")
	}
	r.Tags = append([]string{}, m.Tags...)
	r.RelatedResourceIDs = append([]string{}, m.RelatedResourceIDs...)
	return r
}

// NewResource converts a wire resource to a row. Counters and timestamps are
// copied as given; callers decide which of them to trust.
func NewResource(r catalog.Resource) Resource {
	var m Resource
	if err := copier.Copy(&m, &r); err != nil {
		log.Error().Err(err).Str("id", r.ID).Msg("convert resource")
	}
	m.Tags = datatypes.NewJSONSlice(append([]string{}, r.Tags...))
	m.RelatedResourceIDs = datatypes.NewJSONSlice(append([]string{}, r.RelatedResourceIDs...))
	return m
}

// ResourcesToCatalog converts a slice of rows
func ResourcesToCatalog(rows []Resource) []catalog.Resource {
	out := make([]catalog.Resource, len(rows))
	for i, row := range rows {
		out[i] = row.ToCatalog()
	}
	return out
}
