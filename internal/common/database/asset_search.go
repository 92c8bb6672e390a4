// internal/common/database/asset_search.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8/esapi"

	"assetid-workers/internal/common/errors"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

// AssetQuery filters indexed asset IDs. Project is required; every other field narrows the result.
type AssetQuery struct {
	Project  string `json:"project"`
	Text     string `json:"text,omitempty"`
	Building string `json:"building,omitempty"`
	Floor    string `json:"floor,omitempty"`
	// Prefix matches the start of the asset ID, e.g. "CMO-GF".
	Prefix string `json:"prefix,omitempty"`
	From   int    `json:"from,omitempty"`
	Size   int    `json:"size,omitempty"`
}

// AssetSearchResult is one page of matches.
type AssetSearchResult struct {
	Assets    []AssetDocument `json:"assets"`
	TotalHits int64           `json:"totalHits"`
	Took      int64           `json:"took"`
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source AssetDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search runs q against the asset index, newest rows first within a project.
func (i *AssetIndexer) Search(ctx context.Context, q AssetQuery) (*AssetSearchResult, error) {
	if q.Project == "" {
		return nil, errors.NewInputValidationError("project is required")
	}
	q = q.normalized()

	body, err := json.Marshal(buildAssetQuery(q))
	if err != nil {
		return nil, errors.NewAssetIndexFailedError(i.index, err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		From:  &q.From,
		Size:  &q.Size,
	}
	res, err := req.Do(ctx, i.es.Client)
	if err != nil {
		return nil, errors.NewAssetIndexFailedError(i.index, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, errors.NewResourceNotFoundError("elasticsearch", fmt.Sprintf("index %s does not exist", i.index))
	}
	if res.IsError() {
		return nil, errors.NewAssetIndexFailedError(i.index, fmt.Errorf("search failed: %s", res.String()))
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, errors.NewAssetIndexFailedError(i.index, err)
	}

	out := &AssetSearchResult{
		Assets:    make([]AssetDocument, 0, len(r.Hits.Hits)),
		TotalHits: r.Hits.Total.Value,
		Took:      r.Took,
	}
	for _, h := range r.Hits.Hits {
		out.Assets = append(out.Assets, h.Source)
	}
	return out, nil
}

func (q AssetQuery) normalized() AssetQuery {
	if q.From < 0 {
		q.From = 0
	}
	if q.Size < 1 {
		q.Size = defaultSearchSize
	}
	if q.Size > maxSearchSize {
		q.Size = maxSearchSize
	}
	return q
}

func buildAssetQuery(q AssetQuery) map[string]interface{} {
	must := []interface{}{}
	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  q.Text,
				"fields": []string{"equipment^3", "system^2", "room", "sublocation", "assetId"},
				"type":   "best_fields",
			},
		})
	} else {
		must = append(must, map[string]interface{}{"match_all": map[string]interface{}{}})
	}

	filter := []interface{}{
		map[string]interface{}{"term": map[string]interface{}{"project.keyword": q.Project}},
	}
	if q.Building != "" {
		filter = append(filter, map[string]interface{}{"match": map[string]interface{}{"building": q.Building}})
	}
	if q.Floor != "" {
		filter = append(filter, map[string]interface{}{"match": map[string]interface{}{"floor": q.Floor}})
	}
	if q.Prefix != "" {
		filter = append(filter, map[string]interface{}{"prefix": map[string]interface{}{"assetId.keyword": q.Prefix}})
	}

	return map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must":   must,
				"filter": filter,
			},
		},
		"sort": []map[string]interface{}{
			{"indexedAt": "desc"},
			{"row": "asc"},
		},
	}
}
