package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/deskhive/deskhive/internal/models"
)

// Search runs a fuzzy multi_match over the spaces index.
func Search(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Space, error) {
	body := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":     query,
				"fields":    []string{"name^2", "description", "location"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct{ Value int64 }           `json:"total"`
			Hits  []struct{ Source models.Space } `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	spaces := make([]models.Space, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		spaces[i] = hit.Source
	}
	return r.Hits.Total.Value, spaces, nil
}

// IndexSpace upserts one space document. Mutating handlers call it after
// commit; indexing failures are the caller's to log, not to fail on.
func IndexSpace(ctx context.Context, es *elasticsearch.Client, index string, space *models.Space) error {
	data, err := json.Marshal(space)
	if err != nil {
		return err
	}
	res, err := es.Index(
		index,
		strings.NewReader(string(data)),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(space.ID), 10)),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("index space: %s", res.Status())
	}
	return nil
}

func DeleteSpace(ctx context.Context, es *elasticsearch.Client, index string, spaceID uint) error {
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(spaceID), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete space: %s", res.Status())
	}
	return nil
}
