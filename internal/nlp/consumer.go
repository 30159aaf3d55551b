package nlp

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/docpipe/docpipe/internal/bus"
	"github.com/docpipe/docpipe/internal/index"
	"github.com/docpipe/docpipe/pkg/metrics"
)

const defaultPollTimeout = 30 * time.Second

// Consumer is the extraction worker loop. It drains the bus queue,
// runs the pipeline against each referenced document and writes the
// entities back to the index. Only a shutdown message or context
// cancellation stops the loop; per-message failures are logged and the
// loop keeps going.
type Consumer struct {
	indexer     index.Indexer
	pipeline    Pipeline
	queue       *bus.Queue
	graph       EntityStore
	pollTimeout time.Duration
	log         *zap.SugaredLogger
}

func NewConsumer(indexer index.Indexer, pipeline Pipeline, queue *bus.Queue, graph EntityStore, pollTimeout time.Duration) *Consumer {
	if pollTimeout <= 0 {
		pollTimeout = defaultPollTimeout
	}
	return &Consumer{
		indexer:     indexer,
		pipeline:    pipeline,
		queue:       queue,
		graph:       graph,
		pollTimeout: pollTimeout,
		log:         zap.S().Named("consumer"),
	}
}

// Run processes messages until a shutdown message arrives or the
// context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	c.log.Infof("extraction worker started, pipeline %s", c.pipeline.Type())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg := c.queue.Poll(c.pollTimeout)
		if msg == nil {
			continue
		}

		switch msg.Type {
		case bus.TypeExtractNLP:
			metrics.IncreaseMessagesConsumedMetric(msg.Type)
			c.handle(ctx, msg)
		case bus.TypeShutdown:
			metrics.IncreaseMessagesConsumedMetric(msg.Type)
			c.log.Info("received shutdown message, stopping")
			c.queue.SignalIfEmpty()
			return nil
		default:
			c.log.Debugf("ignoring message of type %q", msg.Type)
		}
		c.queue.SignalIfEmpty()
	}
}

// handle shields the loop from any panic thrown by a pipeline or
// client library while processing one message.
func (c *Consumer) handle(ctx context.Context, msg *bus.Message) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("panic while processing document %s: %v", msg.DocID, r)
		}
	}()
	if err := c.findNamedEntities(ctx, msg.Index, msg.DocID, msg.RoutingID); err != nil {
		c.log.Errorf("cannot extract entities from document %s: %v", msg.DocID, err)
	}
}

func (c *Consumer) findNamedEntities(ctx context.Context, project, docID, routing string) error {
	doc, err := c.indexer.Get(ctx, project, docID, routing)
	if err != nil {
		return err
	}
	if doc == nil {
		c.log.Warnf("no document found for id %s in index %s", docID, project)
		return nil
	}

	if !c.pipeline.Initialize(doc.Language) {
		c.log.Infof("pipeline %s does not support language %s, skipping document %s",
			c.pipeline.Type(), doc.Language, doc.ID)
		return nil
	}
	defer c.pipeline.Terminate(doc.Language)

	annotations, err := c.pipeline.Process(doc.Content, doc.ID, doc.Language)
	if err != nil {
		return err
	}

	entities := EntitiesFrom(annotations, doc.Content, doc.ID, doc.RootID, doc.Language, c.pipeline.Type())
	if len(entities) == 0 {
		c.log.Debugf("no entities found in document %s", doc.ID)
		return nil
	}

	docs := make([]index.BulkDoc, 0, len(entities))
	for _, entity := range entities {
		docs = append(docs, index.BulkDoc{ID: entity.ID, Routing: doc.RootID, Source: entity})
	}
	if err := c.indexer.BulkAdd(ctx, project, docs); err != nil {
		return err
	}
	metrics.AddEntitiesExtractedMetric(len(entities))
	c.log.Infof("extracted %d entities from document %s", len(entities), doc.ID)

	// the graph mirror is best effort, a failure must not undo the
	// index write above
	if c.graph != nil {
		for _, entity := range entities {
			if err := c.graph.Create(ctx, entity); err != nil {
				c.log.Warnf("cannot mirror entities of document %s to graph: %v", doc.ID, err)
				break
			}
		}
	}
	return nil
}
