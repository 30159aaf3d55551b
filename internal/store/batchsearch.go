package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/docpipe/docpipe/internal/store/model"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BatchSearch interface {
	Save(ctx context.Context, owner string, search model.BatchSearch) (*model.BatchSearch, error)
	SaveResults(ctx context.Context, searchID uuid.UUID, query string, documents []model.Document) error
	SetState(ctx context.Context, searchID uuid.UUID, state model.State) error
	Delete(ctx context.Context, owner string, searchID uuid.UUID) error
	DeleteAll(ctx context.Context, owner string) error
	Get(ctx context.Context, owner string) (model.BatchSearchList, error)
	GetByID(ctx context.Context, owner string, searchID uuid.UUID) (*model.BatchSearch, error)
	GetQueued(ctx context.Context) (model.BatchSearchList, error)
	GetResults(ctx context.Context, owner string, searchID uuid.UUID, query *ResultQuery) ([]model.SearchResult, error)
}

type BatchSearchStore struct {
	db *gorm.DB
}

// Make sure we conform to BatchSearch interface
var _ BatchSearch = (*BatchSearchStore)(nil)

func NewBatchSearchStore(db *gorm.DB) BatchSearch {
	return &BatchSearchStore{db: db}
}

// flatBatchSearch is one (batch search x query) row of the denormalized
// select that backs reconstruction.
type flatBatchSearch struct {
	UUID         uuid.UUID `gorm:"column:uuid"`
	Name         string    `gorm:"column:name"`
	Description  string    `gorm:"column:description"`
	UserID       string    `gorm:"column:user_id"`
	PrjID        string    `gorm:"column:prj_id"`
	BatchDate    time.Time `gorm:"column:batch_date"`
	State        string    `gorm:"column:state"`
	Published    bool      `gorm:"column:published"`
	Query        string    `gorm:"column:query"`
	QueryNumber  int       `gorm:"column:query_number"`
	HasResult    bool      `gorm:"column:has_result"`
	QueryResults int       `gorm:"column:query_results"`
	TotalResults int       `gorm:"column:total_results"`
}

const flatSelect = `
SELECT bs.uuid, bs.name, bs.description, bs.user_id, bs.prj_id, bs.batch_date, bs.state, bs.published,
       q.query, q.query_number,
       EXISTS(SELECT 1 FROM batch_search_result r WHERE r.search_uuid = bs.uuid AND r.query = q.query) AS has_result,
       (SELECT COUNT(*) FROM batch_search_result r WHERE r.search_uuid = bs.uuid AND r.query = q.query) AS query_results,
       (SELECT COUNT(*) FROM batch_search_result r WHERE r.search_uuid = bs.uuid) AS total_results
FROM batch_search bs
JOIN batch_search_query q ON q.search_uuid = bs.uuid
`

func (b *BatchSearchStore) Save(ctx context.Context, owner string, search model.BatchSearch) (*model.BatchSearch, error) {
	if search.Queries.Len() == 0 {
		return nil, ErrNoQueries
	}

	if search.ID == uuid.Nil {
		search.ID = uuid.New()
	}
	if search.CreatedAt.IsZero() {
		search.CreatedAt = time.Now()
	}
	if search.State == "" {
		search.State = model.StateQueued
	}
	search.Owner = owner

	err := b.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		header := model.BatchSearchRow{
			UUID:        search.ID,
			Name:        search.Name,
			Description: search.Description,
			UserID:      owner,
			PrjID:       search.Project,
			BatchDate:   search.CreatedAt,
			State:       search.State,
			Published:   search.Published,
		}
		if err := tx.Create(&header).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrDuplicateKey
			}
			return err
		}

		for i, query := range search.Queries.Keys() {
			row := model.BatchSearchQueryRow{
				SearchUUID:  search.ID,
				QueryNumber: i,
				Query:       query,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &search, nil
}

func (b *BatchSearchStore) SaveResults(ctx context.Context, searchID uuid.UUID, query string, documents []model.Document) error {
	if len(documents) == 0 {
		return nil
	}

	rows := make([]model.SearchResultRow, 0, len(documents))
	for i, doc := range documents {
		rows = append(rows, model.SearchResultRow{
			SearchUUID:    searchID,
			Query:         query,
			DocNb:         i,
			DocID:         doc.ID,
			RootID:        doc.RootID,
			DocName:       doc.Name,
			CreationDate:  doc.CreationDate,
			ContentType:   doc.ContentType,
			ContentLength: doc.ContentLength,
		})
	}

	// retries after a failure are safe: re-appending the same positions
	// overwrites identical rows instead of duplicating them
	return b.getDB(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "search_uuid"}, {Name: "query"}, {Name: "doc_nb"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"doc_id", "root_id", "doc_name", "creation_date", "content_type", "content_length",
		}),
	}).Create(&rows).Error
}

func (b *BatchSearchStore) SetState(ctx context.Context, searchID uuid.UUID, state model.State) error {
	result := b.getDB(ctx).Model(&model.BatchSearchRow{}).Where("uuid = ?", searchID).Update("state", state)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

func (b *BatchSearchStore) Delete(ctx context.Context, owner string, searchID uuid.UUID) error {
	return b.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&model.BatchSearchRow{}).Select("uuid").
			Where("user_id = ? AND uuid = ?", owner, searchID)

		if err := tx.Where("search_uuid IN (?)", owned).Delete(&model.BatchSearchQueryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("search_uuid IN (?)", owned).Delete(&model.SearchResultRow{}).Error; err != nil {
			return err
		}

		result := tx.Where("user_id = ? AND uuid = ?", owner, searchID).Delete(&model.BatchSearchRow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrRecordNotFound
		}
		return nil
	})
}

func (b *BatchSearchStore) DeleteAll(ctx context.Context, owner string) error {
	return b.getDB(ctx).Transaction(func(tx *gorm.DB) error {
		owned := tx.Model(&model.BatchSearchRow{}).Select("uuid").Where("user_id = ?", owner)

		if err := tx.Where("search_uuid IN (?)", owned).Delete(&model.BatchSearchQueryRow{}).Error; err != nil {
			return err
		}
		if err := tx.Where("search_uuid IN (?)", owned).Delete(&model.SearchResultRow{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", owner).Delete(&model.BatchSearchRow{}).Error
	})
}

func (b *BatchSearchStore) Get(ctx context.Context, owner string) (model.BatchSearchList, error) {
	var rows []flatBatchSearch
	err := b.getDB(ctx).Raw(
		flatSelect+"WHERE bs.user_id = ? OR bs.published = ? ORDER BY bs.batch_date DESC, q.query_number ASC",
		owner, true,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return mergeBatchSearches(rows)
}

func (b *BatchSearchStore) GetByID(ctx context.Context, owner string, searchID uuid.UUID) (*model.BatchSearch, error) {
	var rows []flatBatchSearch
	err := b.getDB(ctx).Raw(
		flatSelect+"WHERE bs.uuid = ? ORDER BY q.query_number ASC",
		searchID,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	merged, err := mergeBatchSearches(rows)
	if err != nil {
		return nil, err
	}
	if len(merged) == 0 {
		return nil, ErrRecordNotFound
	}
	return &merged[0], nil
}

func (b *BatchSearchStore) GetQueued(ctx context.Context) (model.BatchSearchList, error) {
	var rows []flatBatchSearch
	err := b.getDB(ctx).Raw(
		flatSelect+"WHERE bs.state = ? ORDER BY bs.batch_date DESC, q.query_number ASC",
		model.StateQueued,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return mergeBatchSearches(rows)
}

func (b *BatchSearchStore) GetResults(ctx context.Context, owner string, searchID uuid.UUID, query *ResultQuery) ([]model.SearchResult, error) {
	var header model.BatchSearchRow
	if err := b.getDB(ctx).First(&header, "uuid = ?", searchID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	if header.UserID != owner && !header.Published {
		return nil, &UnauthorizedError{SearchID: searchID, Owner: header.UserID, Requester: owner}
	}

	tx := b.getDB(ctx).Model(&model.SearchResultRow{}).Where("search_uuid = ?", searchID)
	if query != nil {
		tx = query.apply(tx)
	} else {
		tx = NewResultQuery().apply(tx)
	}

	var rows []model.SearchResultRow
	if err := tx.Find(&rows).Error; err != nil {
		return nil, err
	}

	results := make([]model.SearchResult, 0, len(rows))
	for _, r := range rows {
		results = append(results, model.SearchResult{
			Query:         r.Query,
			DocID:         r.DocID,
			RootID:        r.RootID,
			DocName:       r.DocName,
			CreationDate:  r.CreationDate,
			ContentType:   r.ContentType,
			ContentLength: r.ContentLength,
			DocNb:         r.DocNb,
		})
	}
	return results, nil
}

// mergeBatchSearches reconstructs logical batch searches from flat
// (search x query) rows: job-level fields come from the first row of
// each group, the (query, count) pairs are folded in row order into
// the ordered query mapping. Two rows of the same group carrying the
// same query key is a data-integrity error and aborts reconstruction.
func mergeBatchSearches(rows []flatBatchSearch) (model.BatchSearchList, error) {
	order := make([]uuid.UUID, 0)
	groups := make(map[uuid.UUID]*model.BatchSearch)

	for _, row := range rows {
		search, found := groups[row.UUID]
		if !found {
			search = &model.BatchSearch{
				ID:           row.UUID,
				Project:      row.PrjID,
				Name:         row.Name,
				Description:  row.Description,
				Owner:        row.UserID,
				CreatedAt:    row.BatchDate,
				State:        model.State(row.State),
				Published:    row.Published,
				TotalResults: row.TotalResults,
				Queries:      model.NewQueryMap(),
			}
			groups[row.UUID] = search
			order = append(order, row.UUID)
		}

		var count *int
		if row.HasResult {
			c := row.QueryResults
			count = &c
		}
		if err := search.Queries.Add(row.Query, count); err != nil {
			return nil, &DuplicateQueryError{SearchID: row.UUID, Query: row.Query}
		}
	}

	merged := make(model.BatchSearchList, 0, len(order))
	for _, id := range order {
		merged = append(merged, *groups[id])
	}
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	return merged, nil
}

func (b *BatchSearchStore) getDB(ctx context.Context) *gorm.DB {
	tx := FromContext(ctx)
	if tx != nil {
		return tx
	}
	return b.db
}
