package store

import (
	"context"

	"github.com/docpipe/docpipe/internal/store/model"
	"gorm.io/gorm"
)

type Store interface {
	NewTransactionContext(ctx context.Context) (context.Context, error)
	BatchSearch() BatchSearch
	InitialMigration() error
	Close() error
}

type DataStore struct {
	batchSearch BatchSearch
	db          *gorm.DB
}

func NewStore(db *gorm.DB) Store {
	return &DataStore{
		batchSearch: NewBatchSearchStore(db),
		db:          db,
	}
}

func (s *DataStore) NewTransactionContext(ctx context.Context) (context.Context, error) {
	return newTransactionContext(ctx, s.db)
}

func (s *DataStore) BatchSearch() BatchSearch {
	return s.batchSearch
}

// InitialMigration creates the schema in place. Postgres deployments
// run the goose migrations instead; this path serves sqlite and tests.
func (s *DataStore) InitialMigration() error {
	return s.db.AutoMigrate(
		&model.BatchSearchRow{},
		&model.BatchSearchQueryRow{},
		&model.SearchResultRow{},
	)
}

func (s *DataStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
