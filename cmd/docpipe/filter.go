package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/docpipe/docpipe/internal/config"
	"github.com/docpipe/docpipe/internal/index"
	"github.com/docpipe/docpipe/internal/queue"
	"github.com/docpipe/docpipe/pkg/log"
)

var filterUser string

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Remove duplicate and already indexed entries from the extraction queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.New()
		if err != nil {
			return err
		}

		logger := log.InitLog(log.Level(cfg.Service.LogLevel))
		defer func() { _ = logger.Sync() }()
		undo := zap.ReplaceGlobals(logger)
		defer undo()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		redisClient, err := queue.NewRedisClient(queue.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			zap.S().Fatalw("connecting to redis", "error", err)
		}
		defer redisClient.Close()

		indexer, err := index.NewElasticsearch(ctx, index.ElasticsearchConfig{
			URL:      cfg.Index.URL,
			Username: cfg.Index.Username,
			Password: cfg.Index.Password,
		})
		if err != nil {
			zap.S().Fatalw("connecting to elasticsearch", "error", err)
		}

		queueName := cfg.Service.QueueName
		if filterUser != "" {
			queueName = fmt.Sprintf("%s:%s", cfg.Service.QueueName, filterUser)
		}

		streamer := index.NewExtractedStreamer(indexer, cfg.Service.ProjectName)
		filter := queue.NewFilter(
			queue.NewRedisQueue(redisClient, queueName),
			streamer,
			func(name string) queue.DocumentQueue { return queue.NewRedisQueue(redisClient, name) },
			cfg.Service.FilterBatchSize,
		)

		removed, err := filter.Run(ctx)
		if err != nil {
			zap.S().Fatalw("filtering queue", "queue", queueName, "error", err)
		}
		zap.S().Infow("queue filtered", "queue", queueName, "removed", removed)
		return nil
	},
}

func init() {
	filterCmd.Flags().StringVar(&filterUser, "user", "", "Filter the per-user queue instead of the shared one")
}
