package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"go.uber.org/zap"
)

// Elasticsearch implements Indexer on top of an Elasticsearch cluster.
type Elasticsearch struct {
	client *es.Client
}

var _ Indexer = (*Elasticsearch)(nil)

type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string

	// Transport overrides the HTTP transport, used by tests.
	Transport http.RoundTripper
}

func NewElasticsearch(ctx context.Context, cfg ElasticsearchConfig) (*Elasticsearch, error) {
	clientConfig := es.Config{
		Addresses: []string{normalizeURL(cfg.URL)},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}
	if cfg.Transport != nil {
		clientConfig.Transport = cfg.Transport
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	e := &Elasticsearch{client: client}
	if cfg.Transport == nil {
		if err := e.ping(ctx); err != nil {
			return nil, err
		}
	}
	return e, nil
}

func normalizeURL(url string) string {
	if url == "" {
		return "http://localhost:9200"
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

func (e *Elasticsearch) ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := e.client.Ping(e.client.Ping.WithContext(pingCtx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer drainAndClose(res)

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping returned error [%s]", res.Status())
	}
	return nil
}

// docSource mirrors the indexed document mapping.
type docSource struct {
	Path          string     `json:"path"`
	Name          string     `json:"name"`
	Language      string     `json:"language"`
	Content       string     `json:"content"`
	ContentType   string     `json:"contentType"`
	ContentLength *int64     `json:"contentLength"`
	CreationDate  *time.Time `json:"creationDate"`
	RootDocument  string     `json:"rootDocument"`
}

func (e *Elasticsearch) Get(ctx context.Context, index, id, routing string) (*Document, error) {
	opts := []func(*esapi.GetRequest){
		e.client.Get.WithContext(ctx),
	}
	if routing != "" {
		opts = append(opts, e.client.Get.WithRouting(routing))
	}

	res, err := e.client.Get(index, id, opts...)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", index, id, err)
	}
	defer drainAndClose(res)

	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("get %s/%s returned error [%s]", index, id, res.Status())
	}

	var body struct {
		ID     string    `json:"_id"`
		Source docSource `json:"_source"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decoding get response for %s/%s: %w", index, id, err)
	}

	return toDocument(body.ID, body.Source), nil
}

func (e *Elasticsearch) BulkAdd(ctx context.Context, index string, docs []BulkDoc) error {
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action := map[string]map[string]string{
			"index": {"_index": index, "_id": doc.ID},
		}
		if doc.Routing != "" {
			action["index"]["routing"] = doc.Routing
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return err
		}
		if err := json.NewEncoder(&buf).Encode(doc.Source); err != nil {
			return err
		}
	}

	res, err := e.client.Bulk(bytes.NewReader(buf.Bytes()), e.client.Bulk.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("bulk add to %s: %w", index, err)
	}
	defer drainAndClose(res)

	if res.IsError() {
		return fmt.Errorf("bulk add to %s returned error [%s]", index, res.Status())
	}

	var body struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return fmt.Errorf("decoding bulk response: %w", err)
	}
	if body.Errors {
		return fmt.Errorf("bulk add to %s: some items failed", index)
	}
	return nil
}

func (e *Elasticsearch) Search(ctx context.Context, index, query string, from, size int) ([]Document, error) {
	body := map[string]any{
		"from": from,
		"size": size,
		"query": map[string]any{
			"match": map[string]any{
				"content": map[string]any{"query": query},
			},
		},
		"sort": []any{"_doc"},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", index, err)
	}
	defer drainAndClose(res)

	if res.IsError() {
		return nil, fmt.Errorf("search %s returned error [%s]", index, res.Status())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				ID     string    `json:"_id"`
				Source docSource `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	docs := make([]Document, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		docs = append(docs, *toDocument(hit.ID, hit.Source))
	}
	return docs, nil
}

func (e *Elasticsearch) ExistingPaths(ctx context.Context, index string, paths []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(paths))
	if len(paths) == 0 {
		return existing, nil
	}

	body := map[string]any{
		"size":    len(paths),
		"_source": []string{"path"},
		"query": map[string]any{
			"terms": map[string]any{"path": paths},
		},
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Search(
		e.client.Search.WithContext(ctx),
		e.client.Search.WithIndex(index),
		e.client.Search.WithBody(bytes.NewReader(raw)),
	)
	if err != nil {
		return nil, fmt.Errorf("existing paths in %s: %w", index, err)
	}
	defer drainAndClose(res)

	if res.IsError() {
		return nil, fmt.Errorf("existing paths in %s returned error [%s]", index, res.Status())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source struct {
					Path string `json:"path"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("decoding existing paths response: %w", err)
	}

	for _, hit := range response.Hits.Hits {
		existing[hit.Source.Path] = struct{}{}
	}
	return existing, nil
}

func toDocument(id string, src docSource) *Document {
	return &Document{
		ID:            id,
		RootID:        src.RootDocument,
		Path:          src.Path,
		Name:          src.Name,
		Language:      src.Language,
		Content:       src.Content,
		ContentType:   src.ContentType,
		ContentLength: src.ContentLength,
		CreationDate:  src.CreationDate,
	}
}

func drainAndClose(res *esapi.Response) {
	if res == nil || res.Body == nil {
		return
	}
	if _, err := io.Copy(io.Discard, res.Body); err != nil {
		zap.S().Named("index").Debugf("draining response body: %v", err)
	}
	_ = res.Body.Close()
}
