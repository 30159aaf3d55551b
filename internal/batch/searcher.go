package batch

import (
	"context"

	"github.com/docpipe/docpipe/internal/index"
	"github.com/docpipe/docpipe/internal/store/model"
)

const defaultPageSize = 100

// IndexSearcher pages through the index to collect every hit of a
// query, mapping index documents to stored result documents.
type IndexSearcher struct {
	indexer  index.Indexer
	pageSize int
}

var _ Searcher = (*IndexSearcher)(nil)

func NewIndexSearcher(indexer index.Indexer, pageSize int) *IndexSearcher {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	return &IndexSearcher{indexer: indexer, pageSize: pageSize}
}

func (s *IndexSearcher) Search(ctx context.Context, project, query string) ([]model.Document, error) {
	var documents []model.Document
	for from := 0; ; from += s.pageSize {
		page, err := s.indexer.Search(ctx, project, query, from, s.pageSize)
		if err != nil {
			return nil, err
		}
		for _, doc := range page {
			documents = append(documents, model.Document{
				ID:            doc.ID,
				RootID:        doc.RootID,
				Name:          doc.Name,
				CreationDate:  doc.CreationDate,
				ContentType:   doc.ContentType,
				ContentLength: doc.ContentLength,
			})
		}
		if len(page) < s.pageSize {
			return documents, nil
		}
	}
}
