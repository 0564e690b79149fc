package search

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"example.com/eventwave/config"
	"example.com/eventwave/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *ElasticClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/" {
			_, _ = w.Write([]byte(`{"version":{"number":"7.17.10","build_flavor":"default"},"tagline":"You Know, for Search"}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c, err := NewElasticClient(config.ElasticConfig{URL: srv.URL, Prefix: "eventwave", Index: "events"})
	require.NoError(t, err)
	return c
}

func TestBulkBody(t *testing.T) {
	body, err := bulkBody([]models.Event{
		{ID: "a", Title: "Jazz night"},
		{ID: "b", Title: "Football"},
	})
	require.NoError(t, err)

	var lines []string
	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.Len(t, lines, 4)
	assert.JSONEq(t, `{"index":{"_id":"a"}}`, lines[0])

	var doc eventDocument
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &doc))
	assert.Equal(t, "Jazz night", doc.Title)
}

func TestIndexEvents(t *testing.T) {
	var path string
	var payload string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		data, _ := io.ReadAll(r.Body)
		payload = string(data)
		_, _ = w.Write([]byte(`{"took":1,"errors":false,"items":[]}`))
	})

	require.NoError(t, c.IndexEvents(context.Background(), []models.Event{{ID: "a", Title: "Jazz"}}))
	assert.Equal(t, "/eventwave-events/_bulk", path)
	assert.True(t, strings.Contains(payload, `"_id":"a"`))
}

func TestIndexEventsReportsItemErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"took":1,"errors":true,"items":[]}`))
	})

	assert.Error(t, c.IndexEvents(context.Background(), []models.Event{{ID: "a"}}))
}

func TestSearchTitles(t *testing.T) {
	var query map[string]interface{}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&query)
		_, _ = w.Write([]byte(`{"hits":{"hits":[{"_id":"tm1"},{"_id":"tm2"}]}}`))
	})

	ids, err := c.SearchTitles(context.Background(), "jazz")
	require.NoError(t, err)
	assert.Equal(t, []string{"tm1", "tm2"}, ids)
	assert.Contains(t, query, "query")
}

func TestSearchTitlesError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"bad query"}`))
	})

	_, err := c.SearchTitles(context.Background(), "jazz")
	assert.Error(t, err)
}

func TestDeleteAllIgnoresMissingIndex(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"index_not_found_exception"}`))
	})

	assert.NoError(t, c.DeleteAll(context.Background()))
}
