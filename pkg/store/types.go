// Package store persists ingested statute documents. The Store interface
// keeps the ingestion pipeline agnostic of the backend; FileStore writes a
// manifest-plus-files layout on disk and MongoStore targets a collection.
package store

import (
	"time"

	"github.com/rcoria/leyesmx/pkg/extract"
)

// Document is one ingested statute: registry metadata plus the extracted
// provisions and definitions. Stub marks synthesized records persisted when
// no format yielded a usable extraction.
type Document struct {
	ID          string               `json:"id" bson:"_id"`
	Title       string               `json:"title" bson:"title"`
	ShortTitle  string               `json:"short_title,omitempty" bson:"short_title,omitempty"`
	Status      string               `json:"status,omitempty" bson:"status,omitempty"`
	Published   string               `json:"published,omitempty" bson:"published,omitempty"`
	SourceURL   string               `json:"source_url,omitempty" bson:"source_url,omitempty"`
	Description string               `json:"description,omitempty" bson:"description,omitempty"`
	FetchedAt   time.Time            `json:"fetched_at" bson:"fetched_at"`
	Format      string               `json:"format,omitempty" bson:"format,omitempty"`
	Stub        bool                 `json:"stub" bson:"stub"`
	Provisions  []extract.Provision  `json:"provisions" bson:"provisions"`
	Definitions []extract.Definition `json:"definitions,omitempty" bson:"definitions,omitempty"`
}

// ProvisionByKey returns the provision with the given reference key, or nil.
func (document *Document) ProvisionByKey(key string) *extract.Provision {
	for index := range document.Provisions {
		if document.Provisions[index].Key == key {
			return &document.Provisions[index]
		}
	}
	return nil
}
