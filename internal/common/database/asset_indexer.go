// internal/common/database/asset_indexer.go
package database

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
)

// assetNamespace seeds deterministic document IDs so re-indexing a project overwrites its documents.
var assetNamespace = uuid.MustParse("6f1c2b0e-8a51-4d0e-9a8e-3c1d2f4b5a60")

// AssetDocument is the searchable form of one generated row.
type AssetDocument struct {
	Project     string            `json:"project"`
	RunID       string            `json:"runId"`
	Row         int               `json:"row"`
	AssetID     string            `json:"assetId"`
	IDs         map[string]string `json:"ids"`
	Building    string            `json:"building,omitempty"`
	Floor       string            `json:"floor,omitempty"`
	Sublocation string            `json:"sublocation,omitempty"`
	Room        string            `json:"room,omitempty"`
	Equipment   string            `json:"equipment,omitempty"`
	System      string            `json:"system,omitempty"`
	IndexedAt   time.Time         `json:"indexedAt"`
}

// DocumentID is stable for a project and asset ID.
func (d AssetDocument) DocumentID() string {
	return uuid.NewSHA1(assetNamespace, []byte(d.Project+"\x00"+d.AssetID)).String()
}

// IndexStats summarizes a bulk run.
type IndexStats struct {
	Indexed int
	Failed  int
}

// AssetIndexer bulk-loads generated IDs into Elasticsearch.
type AssetIndexer struct {
	es     *ElasticsearchClient
	index  string
	logger logger.Logger
}

func NewAssetIndexer(es *ElasticsearchClient, index string, log logger.Logger) *AssetIndexer {
	if index == "" {
		index = "asset-ids"
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &AssetIndexer{es: es, index: index, logger: log}
}

func (i *AssetIndexer) Index() string { return i.index }

// IndexDocuments upserts docs. Per-document failures are counted; any failure returns an
// ASSET_INDEX_FAILED error together with the stats.
func (i *AssetIndexer) IndexDocuments(ctx context.Context, docs []AssetDocument) (IndexStats, error) {
	var stats IndexStats
	if len(docs) == 0 {
		return stats, nil
	}

	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     i.es.Client,
		Index:      i.index,
		NumWorkers: 2,
		FlushBytes: 1 << 20,
	})
	if err != nil {
		return stats, errors.NewAssetIndexFailedError(i.index, err)
	}

	var mu sync.Mutex
	var firstErr string
	for _, doc := range docs {
		body, err := json.Marshal(doc)
		if err != nil {
			return stats, errors.NewAssetIndexFailedError(i.index, err)
		}
		err = bi.Add(ctx, esutil.BulkIndexerItem{
			Action:     "index",
			DocumentID: doc.DocumentID(),
			Body:       bytes.NewReader(body),
			OnFailure: func(_ context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				mu.Lock()
				defer mu.Unlock()
				if firstErr != "" {
					return
				}
				if err != nil {
					firstErr = err.Error()
				} else {
					firstErr = fmt.Sprintf("%s: %s", res.Error.Type, res.Error.Reason)
				}
			},
		})
		if err != nil {
			_ = bi.Close(ctx)
			return stats, errors.NewAssetIndexFailedError(i.index, err)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return stats, errors.NewAssetIndexFailedError(i.index, err)
	}

	s := bi.Stats()
	stats = IndexStats{Indexed: int(s.NumIndexed), Failed: int(s.NumFailed)}
	i.logger.Info("Indexed asset IDs", map[string]interface{}{
		"index":   i.index,
		"indexed": stats.Indexed,
		"failed":  stats.Failed,
	})

	if stats.Failed > 0 {
		return stats, errors.NewAssetIndexFailedError(i.index, fmt.Errorf("%d documents failed, first: %s", stats.Failed, firstErr))
	}
	return stats, nil
}

// assetIndexMapping keeps keyword sub-fields on project and assetId for term and prefix filters.
const assetIndexMapping = `{
  "settings": {"number_of_shards": 1},
  "mappings": {
    "properties": {
      "project":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "runId":       {"type": "keyword"},
      "row":         {"type": "integer"},
      "assetId":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "ids":         {"type": "object"},
      "building":    {"type": "text"},
      "floor":       {"type": "text"},
      "sublocation": {"type": "text"},
      "room":        {"type": "text"},
      "equipment":   {"type": "text"},
      "system":      {"type": "text"},
      "indexedAt":   {"type": "date"}
    }
  }
}`

// EnsureIndex creates the asset index with its mapping on first start.
func (i *AssetIndexer) EnsureIndex(ctx context.Context) error {
	created, err := i.es.EnsureIndex(ctx, i.index, assetIndexMapping)
	if err != nil {
		return errors.NewAssetIndexFailedError(i.index, err)
	}
	if created {
		i.logger.Info("Created asset index", map[string]interface{}{"index": i.index})
	}
	return nil
}
