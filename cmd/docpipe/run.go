package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docpipe/docpipe/internal/batch"
	"github.com/docpipe/docpipe/internal/bus"
	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/graph"
	"github.com/docpipe/docpipe/internal/index"
	"github.com/docpipe/docpipe/internal/nlp"
	"github.com/docpipe/docpipe/internal/queue"
	"github.com/docpipe/docpipe/internal/store"
	"github.com/docpipe/docpipe/pkg/log"
)

// drainTimeout bounds how long shutdown waits for in-flight messages.
const drainTimeout = 30 * time.Second

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extraction worker and batch search runner",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		zap.S().Info("starting docpipe")
		defer zap.S().Info("docpipe stopped")

		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}
		st := store.NewStore(db)
		defer st.Close()

		if err := st.InitialMigration(); err != nil {
			zap.S().Fatalw("running initial migration", "error", err)
		}

		redisClient, err := queue.NewRedisClient(queue.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zap.S().Fatalw("connecting to redis", "error", err)
		}
		defer redisClient.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		indexer, err := index.NewElasticsearch(ctx, index.ElasticsearchConfig{
			URL:      cfg.Index.URL,
			Username: cfg.Index.Username,
			Password: cfg.Index.Password,
		})
		if err != nil {
			zap.S().Fatalw("connecting to elasticsearch", "error", err)
		}

		messages := bus.NewQueue()
		subscriber := bus.NewSubscriber(redisClient, cfg.Service.MessageChannel, messages)
		go func() {
			if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
				zap.S().Errorw("bus subscriber stopped", "error", err)
				cancel()
			}
		}()

		// the worker outlives the signal context so it can drain its
		// queue before honoring the shutdown message
		workerCtx, workerCancel := context.WithCancel(context.Background())
		defer workerCancel()
		consumer := nlp.NewConsumer(indexer, nlp.NewEmailPipeline(), messages, &graph.StdoutStore{}, cfg.Service.PollTimeout)
		consumerDone := make(chan struct{})
		go func() {
			defer close(consumerDone)
			defer cancel()
			if err := consumer.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				zap.S().Errorw("extraction worker stopped", "error", err)
			}
		}()

		searcher := batch.NewIndexSearcher(indexer, cfg.Service.SearchPageSize)
		runner := batch.NewRunner(st, searcher, cfg.Service.BatchPollInterval)
		go func() {
			defer cancel()
			if err := runner.Run(ctx); err != nil && ctx.Err() == nil {
				zap.S().Errorw("batch runner stopped", "error", err)
			}
		}()

		metricsServer := &http.Server{Addr: cfg.Service.MetricsAddress, Handler: promhttp.Handler()}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				zap.S().Errorw("metrics server stopped", "error", err)
			}
		}()

		<-ctx.Done()

		// let the worker drain what it already holds, then tell it to stop
		if !messages.WaitUntilEmpty(drainTimeout) {
			zap.S().Warn("message queue not drained before shutdown")
		}
		messages.Offer(&bus.Message{Type: bus.TypeShutdown})

		select {
		case <-consumerDone:
		case <-time.After(drainTimeout):
			zap.S().Warn("extraction worker did not stop in time")
			workerCancel()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = metricsServer.Shutdown(shutdownCtx)
		return nil
	},
}
