package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BatchSearch is a batch search reconstructed as a single logical object
// from its normalized storage rows.
type BatchSearch struct {
	ID           uuid.UUID
	Project      string
	Name         string
	Description  string
	Owner        string
	CreatedAt    time.Time
	State        State
	Published    bool
	TotalResults int
	Queries      *QueryMap
}

// SearchResult is one document matched by one query of a batch search.
// Rows are append-only; DocNb is the 0-based position of the document
// within its query's result set.
type SearchResult struct {
	Query         string
	DocID         string
	RootID        string
	DocName       string
	CreationDate  *time.Time
	ContentType   string
	ContentLength *int64
	DocNb         int
}

// Document is the persisted projection of an index hit, as handed to
// SaveResults by the batch runner.
type Document struct {
	ID            string
	RootID        string
	Name          string
	CreationDate  *time.Time
	ContentType   string
	ContentLength *int64
}

// BatchSearchRow represents a row from the batch_search table.
type BatchSearchRow struct {
	UUID        uuid.UUID `gorm:"primaryKey;column:uuid;type:VARCHAR(255)"`
	Name        string    `gorm:"column:name"`
	Description string    `gorm:"column:description"`
	UserID      string    `gorm:"column:user_id;not null;index:batch_search_user_id_idx"`
	PrjID       string    `gorm:"column:prj_id;not null"`
	BatchDate   time.Time `gorm:"column:batch_date;not null"`
	State       State     `gorm:"column:state;type:VARCHAR(20);not null;default:'QUEUED'"`
	Published   bool      `gorm:"column:published;not null;default:false"`
}

func (BatchSearchRow) TableName() string {
	return "batch_search"
}

// BatchSearchQueryRow represents a row from the batch_search_query table.
// The primary key is (search_uuid, query_number) on purpose: the query
// text itself is not unique at the storage level, uniqueness of query
// keys within one search is an application invariant enforced loudly at
// merge time.
type BatchSearchQueryRow struct {
	SearchUUID  uuid.UUID `gorm:"primaryKey;column:search_uuid;type:VARCHAR(255)"`
	QueryNumber int       `gorm:"primaryKey;column:query_number"`
	Query       string    `gorm:"column:query;not null"`
}

func (BatchSearchQueryRow) TableName() string {
	return "batch_search_query"
}

// SearchResultRow represents a row from the batch_search_result table.
// The composite primary key makes result appends idempotent per
// (search, query, position).
type SearchResultRow struct {
	SearchUUID    uuid.UUID  `gorm:"primaryKey;column:search_uuid;type:VARCHAR(255)"`
	Query         string     `gorm:"primaryKey;column:query"`
	DocNb         int        `gorm:"primaryKey;column:doc_nb"`
	DocID         string     `gorm:"column:doc_id;not null"`
	RootID        string     `gorm:"column:root_id"`
	DocName       string     `gorm:"column:doc_name"`
	CreationDate  *time.Time `gorm:"column:creation_date"`
	ContentType   string     `gorm:"column:content_type"`
	ContentLength *int64     `gorm:"column:content_length"`
}

func (SearchResultRow) TableName() string {
	return "batch_search_result"
}

type BatchSearchList []BatchSearch

func (b BatchSearch) String() string {
	val, _ := json.Marshal(struct {
		ID      uuid.UUID `json:"id"`
		Project string    `json:"project"`
		Name    string    `json:"name"`
		Owner   string    `json:"owner"`
		State   State     `json:"state"`
	}{b.ID, b.Project, b.Name, b.Owner, b.State})
	return string(val)
}
