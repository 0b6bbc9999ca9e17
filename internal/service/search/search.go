package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/Skotchmaster/bookly/internal/models"
	"github.com/elastic/go-elasticsearch/v9"
)

// Index is the Elasticsearch index holding published books. Documents enter
// it on publish and leave it on unpublish or delete.
const Index = "books"

func Search(ctx context.Context, es *elasticsearch.Client, query string, from, size int) (int64, []models.Book, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description", "author_name"},
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
		es.Search.WithIndex(Index),
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
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Book `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, err
	}

	books := make([]models.Book, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		books[i] = hit.Source
	}
	return r.Hits.Total.Value, books, nil
}

func IndexBook(ctx context.Context, es *elasticsearch.Client, book *models.Book) error {
	data, err := json.Marshal(book)
	if err != nil {
		return fmt.Errorf("search: encode book: %w", err)
	}
	res, err := es.Index(Index, bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(book.ID),
	)
	if err != nil {
		return fmt.Errorf("search: index book: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("search: index book: %s", res.Status())
	}
	return nil
}

func RemoveBook(ctx context.Context, es *elasticsearch.Client, id string) error {
	res, err := es.Delete(Index, id, es.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("search: remove book: %w", err)
	}
	defer res.Body.Close()
	// 404 just means the book was never indexed.
	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("search: remove book: %s", res.Status())
	}
	return nil
}
