// Package graph mirrors extracted entities to a secondary store. The
// worker loop treats every implementation as best effort.
package graph

import (
	"context"

	"go.uber.org/zap"

	"github.com/docpipe/docpipe/internal/nlp"
)

// StdoutStore logs entities instead of persisting them, used in dev
// and when no graph backend is configured.
type StdoutStore struct{}

var _ nlp.EntityStore = (*StdoutStore)(nil)

func (s *StdoutStore) Create(_ context.Context, entity nlp.NamedEntity) error {
	zap.S().Named("graph").Infow("entity created",
		"mention", entity.Mention,
		"category", entity.Category,
		"documentId", entity.DocID,
	)
	return nil
}
