package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"

	"github.com/elastic/go-elasticsearch/v7"
	"github.com/elastic/go-elasticsearch/v7/esapi"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxHits = 500

// ElasticClient keeps a title index of stored events in Elasticsearch
type ElasticClient struct {
	client *elasticsearch.Client
	config config.ElasticConfig
}

// NewElasticClient creates a new Elasticsearch client
func NewElasticClient(cfg config.ElasticConfig) (*ElasticClient, error) {
	esConfig := elasticsearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Elasticsearch client")
	}

	return &ElasticClient{
		client: client,
		config: cfg,
	}, nil
}

func (c *ElasticClient) index() string {
	return config.FormatIndex(c.config, c.config.Index)
}

// eventDocument is what gets indexed for one event
type eventDocument struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Category  string  `json:"category"`
	VenueName string  `json:"venue_name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	StartDate int64   `json:"start_date"`
}

// IndexEvents bulk-indexes events keyed by id
func (c *ElasticClient) IndexEvents(ctx context.Context, events []models.Event) error {
	if len(events) == 0 {
		return nil
	}

	body, err := bulkBody(events)
	if err != nil {
		return err
	}

	req := esapi.BulkRequest{
		Index:   c.index(),
		Body:    bytes.NewReader(body),
		Refresh: "true",
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch bulk request")
	}
	defer res.Body.Close()

	if err := responseError(res, "bulk"); err != nil {
		return err
	}

	var result struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return errors.Wrap(err, "failed to parse Elasticsearch bulk response")
	}
	if result.Errors {
		return errors.New("Elasticsearch bulk request had item errors")
	}

	log.Debug().Int("count", len(events)).Str("index", c.index()).Msg("events indexed")
	return nil
}

// SearchTitles returns the ids of events whose title matches text
func (c *ElasticClient) SearchTitles(ctx context.Context, text string) ([]string, error) {
	queryJSON, err := json.Marshal(titleQuery(text))
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal search query")
	}

	req := esapi.SearchRequest{
		Index: []string{c.index()},
		Body:  bytes.NewReader(queryJSON),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute Elasticsearch search request")
	}
	defer res.Body.Close()

	if err := responseError(res, "search"); err != nil {
		return nil, err
	}

	var result struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, errors.Wrap(err, "failed to parse Elasticsearch search response")
	}

	ids := make([]string, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

// DeleteAll removes every document from the index
func (c *ElasticClient) DeleteAll(ctx context.Context) error {
	req := esapi.DeleteByQueryRequest{
		Index: []string{c.index()},
		Body:  strings.NewReader(`{"query":{"match_all":{}}}`),
	}
	res, err := req.Do(ctx, c.client)
	if err != nil {
		return errors.Wrap(err, "failed to execute Elasticsearch delete request")
	}
	defer res.Body.Close()

	// a missing index is already empty
	if res.StatusCode == 404 {
		return nil
	}
	return responseError(res, "delete")
}

func titleQuery(text string) map[string]interface{} {
	return map[string]interface{}{
		"size":    maxHits,
		"_source": false,
		"query": map[string]interface{}{
			"match_phrase_prefix": map[string]interface{}{
				"title": map[string]interface{}{
					"query": text,
				},
			},
		},
	}
}

func bulkBody(events []models.Event) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range events {
		meta := map[string]interface{}{"index": map[string]interface{}{"_id": e.ID}}
		if err := enc.Encode(meta); err != nil {
			return nil, errors.Wrap(err, "failed to marshal bulk metadata")
		}
		doc := eventDocument{
			ID:        e.ID,
			Title:     e.Title,
			Category:  e.Category,
			VenueName: e.VenueName,
			Latitude:  e.Latitude,
			Longitude: e.Longitude,
			StartDate: e.StartDate,
		}
		if err := enc.Encode(doc); err != nil {
			return nil, errors.Wrap(err, "failed to marshal event document")
		}
	}
	return buf.Bytes(), nil
}

func responseError(res *esapi.Response, op string) error {
	if !res.IsError() {
		return nil
	}
	var e map[string]interface{}
	data, _ := io.ReadAll(res.Body)
	if err := json.Unmarshal(data, &e); err != nil {
		return errors.Errorf("Elasticsearch %s error: %s", op, res.Status())
	}
	return errors.Errorf("Elasticsearch %s error: %v", op, e)
}
