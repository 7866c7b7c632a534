package models

import "time"

// Course is a catalog record of one ingested SCORM package.
type Course struct {
	ID         string                 `json:"id" db:"id"`
	Title      string                 `json:"title" db:"title"`
	SCOCount   int                    `json:"sco_count" db:"sco_count"`
	Content    string                 `json:"content" db:"content"`
	Enrichment map[string]interface{} `json:"enrichment,omitempty" db:"enrichment"`
	SourceFile string                 `json:"source_file,omitempty" db:"source_file"`
	CreatedAt  time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at" db:"updated_at"`
}
