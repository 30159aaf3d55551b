package store

import (
	"strings"

	"gorm.io/gorm"
)

// ResultQuery selects, sorts and pages the result rows of a batch
// search. The zero query keeps every row, sorted by query text then
// result position. Size 0 means unbounded.
type ResultQuery struct {
	QueryFn []func(tx *gorm.DB) *gorm.DB

	sorted bool
}

// resultSortColumns is the set of caller-sortable columns.
var resultSortColumns = map[string]string{
	"query":          "query",
	"doc_nb":         "doc_nb",
	"doc_id":         "doc_id",
	"doc_name":       "doc_name",
	"creation_date":  "creation_date",
	"content_type":   "content_type",
	"content_length": "content_length",
}

func NewResultQuery() *ResultQuery {
	return &ResultQuery{QueryFn: make([]func(tx *gorm.DB) *gorm.DB, 0)}
}

// WithQueries restricts the rows to the given subset of queries.
func (q *ResultQuery) WithQueries(queries ...string) *ResultQuery {
	if len(queries) == 0 {
		return q
	}
	q.QueryFn = append(q.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Where("query IN ?", queries)
	})
	return q
}

// WithSort orders the rows by a whitelisted column. Unknown fields
// leave the default order in place.
func (q *ResultQuery) WithSort(field string, desc bool) *ResultQuery {
	column, found := resultSortColumns[strings.ToLower(field)]
	if !found {
		return q
	}
	order := column
	if desc {
		order += " DESC"
	}
	q.sorted = true
	q.QueryFn = append(q.QueryFn, func(tx *gorm.DB) *gorm.DB {
		return tx.Order(order)
	})
	return q
}

// WithPage applies offset/limit paging. A size of 0 keeps the page
// unbounded.
func (q *ResultQuery) WithPage(from, size int) *ResultQuery {
	q.QueryFn = append(q.QueryFn, func(tx *gorm.DB) *gorm.DB {
		if size > 0 {
			tx = tx.Limit(size)
		}
		if from > 0 {
			tx = tx.Offset(from)
		}
		return tx
	})
	return q
}

func (q *ResultQuery) apply(tx *gorm.DB) *gorm.DB {
	if !q.sorted {
		tx = tx.Order("query ASC").Order("doc_nb ASC")
	}
	for _, fn := range q.QueryFn {
		tx = fn(tx)
	}
	return tx
}
