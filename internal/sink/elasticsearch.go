package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

// DefaultBulkTimeout bounds one bulk request.
const DefaultBulkTimeout = 30 * time.Second

// ErrEmptyIndex is returned when no index name is configured.
var ErrEmptyIndex = errors.New("elasticsearch index is required")

// ElasticsearchConfig holds client settings.
type ElasticsearchConfig struct {
	URL      string
	Username string
	Password string
	APIKey   string
}

// NewElasticsearchClient builds a client and checks the cluster answers.
func NewElasticsearchClient(ctx context.Context, cfg ElasticsearchConfig) (*es.Client, error) {
	client, err := es.NewClient(es.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		APIKey:    cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return nil, fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return nil, fmt.Errorf("ping elasticsearch: %s", res.String())
	}
	return client, nil
}

// ElasticsearchSink indexes questions with the bulk API, using QuestionID
// as the document id.
type ElasticsearchSink struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewElasticsearchSink writes into index.
func NewElasticsearchSink(client *es.Client, index string, log logger.Logger) (*ElasticsearchSink, error) {
	if index == "" {
		return nil, ErrEmptyIndex
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ElasticsearchSink{
		client: client,
		index:  index,
		log:    log.With(logger.Component("elasticsearch_sink")),
	}, nil
}

// Name implements Sink.
func (s *ElasticsearchSink) Name() string { return "elasticsearch" }

type bulkAction struct {
	Index bulkMeta `json:"index"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string          `json:"_id"`
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error,omitempty"`
	} `json:"items"`
}

// Upsert implements Sink. Item failures are counted, not returned.
func (s *ElasticsearchSink) Upsert(ctx context.Context, questions []domain.Question) (UpsertResult, error) {
	if len(questions) == 0 {
		return UpsertResult{}, ErrEmptyBatch
	}

	var body bytes.Buffer
	enc := json.NewEncoder(&body)
	for _, q := range questions {
		if err := enc.Encode(bulkAction{Index: bulkMeta{Index: s.index, ID: q.QuestionID}}); err != nil {
			return UpsertResult{}, fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(q); err != nil {
			return UpsertResult{}, fmt.Errorf("encode question %s: %w", q.QuestionID, err)
		}
	}

	bulkCtx, cancel := context.WithTimeout(ctx, DefaultBulkTimeout)
	defer cancel()

	res, err := s.client.Bulk(&body,
		s.client.Bulk.WithContext(bulkCtx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("bulk request: %w", err)
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			s.log.Warn("Failed to close bulk response body", logger.Error(closeErr))
		}
	}()

	if res.IsError() {
		return UpsertResult{}, fmt.Errorf("bulk request: %s", res.String())
	}

	var parsed bulkResponse
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return UpsertResult{}, fmt.Errorf("decode bulk response: %w", decodeErr)
	}

	var result UpsertResult
	for _, item := range parsed.Items {
		for _, outcome := range item {
			if outcome.Status >= 300 || len(outcome.Error) > 0 {
				result.ErrorCount++
				s.log.Warn("Bulk item failed",
					logger.String("question_id", outcome.ID),
					logger.Int("status", outcome.Status),
					logger.String("error", string(outcome.Error)),
				)
				continue
			}
			result.InsertedOrUpdated++
		}
	}
	return result, nil
}
