package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

var singleConfig *Config = nil

type Config struct {
	Database *dbConfig
	Redis    *redisConfig
	Index    *indexConfig
	Service  *svcConfig
}

type dbConfig struct {
	Type     string `envconfig:"DOCPIPE_DB_TYPE" default:"pgsql"`
	Hostname string `envconfig:"DOCPIPE_DB_HOST" default:"localhost"`
	Port     string `envconfig:"DOCPIPE_DB_PORT" default:"5432"`
	Name     string `envconfig:"DOCPIPE_DB_NAME" default:"docpipe"`
	User     string `envconfig:"DOCPIPE_DB_USER" default:"admin"`
	Password string `envconfig:"DOCPIPE_DB_PASS" default:"adminpass"`
}

type redisConfig struct {
	Address  string `envconfig:"DOCPIPE_REDIS_ADDRESS" default:"localhost:6379"`
	Password string `envconfig:"DOCPIPE_REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"DOCPIPE_REDIS_DB" default:"0"`
}

type indexConfig struct {
	URL      string `envconfig:"DOCPIPE_ELASTICSEARCH_URL" default:"http://localhost:9200"`
	Username string `envconfig:"DOCPIPE_ELASTICSEARCH_USER" default:""`
	Password string `envconfig:"DOCPIPE_ELASTICSEARCH_PASS" default:""`
}

type svcConfig struct {
	ProjectName       string        `envconfig:"DOCPIPE_PROJECT_NAME" default:"local-docpipe"`
	QueueName         string        `envconfig:"DOCPIPE_QUEUE_NAME" default:"extract:queue"`
	MessageChannel    string        `envconfig:"DOCPIPE_MESSAGE_CHANNEL" default:"extract:nlp"`
	PollTimeout       time.Duration `envconfig:"DOCPIPE_POLL_TIMEOUT" default:"30s"`
	BatchPollInterval time.Duration `envconfig:"DOCPIPE_BATCH_POLL_INTERVAL" default:"10s"`
	SearchPageSize    int           `envconfig:"DOCPIPE_SEARCH_PAGE_SIZE" default:"100"`
	FilterBatchSize   int           `envconfig:"DOCPIPE_FILTER_BATCH_SIZE" default:"512"`
	LogLevel          string        `envconfig:"DOCPIPE_LOG_LEVEL" default:"info"`
	MetricsAddress    string        `envconfig:"DOCPIPE_METRICS_ADDRESS" default:":8080"`
	MigrationFolder   string        `envconfig:"DOCPIPE_MIGRATIONS_FOLDER" default:""`
}

func New() (*Config, error) {
	if singleConfig == nil {
		singleConfig = new(Config)
		if err := envconfig.Process("", singleConfig); err != nil {
			return nil, err
		}
	}
	return singleConfig, nil
}

// NewDefault returns a configuration suitable for tests: an in-process
// sqlite database and the documented defaults for everything else.
func NewDefault() *Config {
	return &Config{
		Database: &dbConfig{
			Type: "sqlite",
			Name: ":memory:",
		},
		Redis: &redisConfig{
			Address: "localhost:6379",
		},
		Index: &indexConfig{
			URL: "http://localhost:9200",
		},
		Service: &svcConfig{
			ProjectName:       "local-docpipe",
			QueueName:         "extract:queue",
			MessageChannel:    "extract:nlp",
			PollTimeout:       30 * time.Second,
			BatchPollInterval: 10 * time.Second,
			SearchPageSize:    100,
			FilterBatchSize:   512,
			LogLevel:          "info",
		},
	}
}
