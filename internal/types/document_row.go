package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentRow is the relational backing of the hierarchical document store:
// one row per document, addressed by (path, doc_id). Payloads are schemaless
// JSONB; timestamps are store-assigned.
type DocumentRow struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Path      string         `gorm:"not null;column:path;uniqueIndex:idx_document_path_doc" json:"path"`
	DocID     string         `gorm:"not null;column:doc_id;uniqueIndex:idx_document_path_doc" json:"doc_id"`
	Data      datatypes.JSON `gorm:"type:jsonb;not null;column:data" json:"data"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (DocumentRow) TableName() string { return "document" }
