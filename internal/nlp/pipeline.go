// Package nlp holds the named entity extraction pipeline contract and
// the worker loop driving it from the message bus.
package nlp

import (
	"context"

	"github.com/google/uuid"
)

// Annotation is one entity occurrence found by a pipeline, as byte
// offsets into the document content.
type Annotation struct {
	Begin    int
	End      int
	Category string
}

// Pipeline finds named entities in document content. Implementations
// may hold per-language resources, hence the Initialize/Terminate
// bracket around processing.
type Pipeline interface {
	// Type identifies the pipeline in persisted entities.
	Type() string
	// Initialize reports whether the pipeline supports the language.
	// Processing is skipped entirely when it returns false.
	Initialize(language string) bool
	// Process extracts annotations from the content of one document.
	Process(content, docID, language string) ([]Annotation, error)
	// Terminate releases per-language resources held by Initialize.
	Terminate(language string)
}

// NamedEntity is one extracted mention, ready to be persisted next to
// its document.
type NamedEntity struct {
	ID        string `json:"id"`
	Mention   string `json:"mention"`
	Category  string `json:"category"`
	Offset    int    `json:"offset"`
	Extractor string `json:"extractor"`
	DocID     string `json:"documentId"`
	RootID    string `json:"rootDocument"`
	Language  string `json:"language"`
}

// EntityStore receives extracted entities for secondary storage, such
// as a graph mirror. Failures are tolerated by the worker loop.
type EntityStore interface {
	Create(ctx context.Context, entity NamedEntity) error
}

// EntitiesFrom materializes annotations against the document they were
// extracted from. Annotations with offsets outside the content are
// skipped rather than truncated.
func EntitiesFrom(annotations []Annotation, content, docID, rootID, language, extractor string) []NamedEntity {
	entities := make([]NamedEntity, 0, len(annotations))
	for _, a := range annotations {
		if a.Begin < 0 || a.End > len(content) || a.Begin >= a.End {
			continue
		}
		entities = append(entities, NamedEntity{
			ID:        uuid.NewString(),
			Mention:   content[a.Begin:a.End],
			Category:  a.Category,
			Offset:    a.Begin,
			Extractor: extractor,
			DocID:     docID,
			RootID:    rootID,
			Language:  language,
		})
	}
	return entities
}
