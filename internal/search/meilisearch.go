package search

import (
	"github.com/meilisearch/meilisearch-go"
	"github.com/smiglya/Project.vsm/internal/models"
)

// TrainDocument is the shape of a train in the search index
type TrainDocument struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	Type            string `json:"type"`
	DepotID         uint   `json:"depot_id"`
	DepotName       string `json:"depot_name"`
	IsActive        bool   `json:"is_active"`
	IsManualMileage bool   `json:"is_manual_mileage"`
	CreatedAt       int64  `json:"created_at"`
}

type SearchClient struct {
	client *meilisearch.Client
	index  string
}

func NewSearchClient(host, apiKey string) *SearchClient {
	client := meilisearch.NewClient(meilisearch.ClientConfig{
		Host:   host,
		APIKey: apiKey,
	})

	return &SearchClient{
		client: client,
		index:  "trains",
	}
}

// InitIndex initializes the Meilisearch index
func (s *SearchClient) InitIndex() error {
	// Create index if it doesn't exist
	_, err := s.client.CreateIndex(&meilisearch.IndexConfig{
		Uid:        s.index,
		PrimaryKey: "id",
	})
	// Ignore error if index already exists
	if err != nil && err.Error() != "index already exists" {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSearchableAttributes(&[]string{
		"name",
		"depot_name",
		"type",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateFilterableAttributes(&[]string{
		"id",
		"type",
		"depot_id",
		"is_active",
		"is_manual_mileage",
	})
	if err != nil {
		return err
	}

	_, err = s.client.Index(s.index).UpdateSortableAttributes(&[]string{
		"name",
		"type",
		"created_at",
	})
	if err != nil {
		return err
	}

	return nil
}

// IndexTrain indexes a single train
func (s *SearchClient) IndexTrain(train *models.Train) error {
	_, err := s.client.Index(s.index).AddDocuments([]TrainDocument{toDocument(train)})
	return err
}

// IndexTrains indexes multiple trains
func (s *SearchClient) IndexTrains(trains []models.Train) error {
	if len(trains) == 0 {
		return nil
	}
	docs := make([]TrainDocument, 0, len(trains))
	for i := range trains {
		docs = append(docs, toDocument(&trains[i]))
	}
	_, err := s.client.Index(s.index).AddDocuments(docs)
	return err
}

// RemoveTrain removes a train from the index
func (s *SearchClient) RemoveTrain(id string) error {
	_, err := s.client.Index(s.index).DeleteDocument(id)
	return err
}

// SearchRequest represents advanced search parameters
type SearchRequest struct {
	Query  string
	Limit  int64
	Offset int64
	Filter []string
	Sort   []string
}

// SearchResult represents search results
type SearchResult struct {
	Hits           []TrainDocument
	TotalHits      int64
	ProcessingTime int64
}

// Search searches for trains with basic options
func (s *SearchClient) Search(query string, limit int64) ([]TrainDocument, error) {
	result, err := s.AdvancedSearch(SearchRequest{
		Query: query,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}
	return result.Hits, nil
}

// AdvancedSearch performs search with filters and sorting
func (s *SearchClient) AdvancedSearch(req SearchRequest) (*SearchResult, error) {
	if req.Limit == 0 {
		req.Limit = 20
	}

	searchReq := &meilisearch.SearchRequest{
		Limit:  req.Limit,
		Offset: req.Offset,
	}

	if len(req.Filter) > 0 {
		filterStr := ""
		for i, f := range req.Filter {
			if i > 0 {
				filterStr += " AND "
			}
			filterStr += f
		}
		searchReq.Filter = filterStr
	}

	if len(req.Sort) > 0 {
		searchReq.Sort = req.Sort
	}

	searchRes, err := s.client.Index(s.index).Search(req.Query, searchReq)
	if err != nil {
		return nil, err
	}

	trains := make([]TrainDocument, 0, len(searchRes.Hits))
	for _, hit := range searchRes.Hits {
		trains = append(trains, parseTrainFromHit(hit))
	}

	return &SearchResult{
		Hits:           trains,
		TotalHits:      searchRes.EstimatedTotalHits,
		ProcessingTime: searchRes.ProcessingTimeMs,
	}, nil
}

func toDocument(train *models.Train) TrainDocument {
	doc := TrainDocument{
		ID:              train.ID,
		Name:            train.Name,
		Type:            train.Type,
		DepotID:         train.DepotID,
		IsActive:        train.IsActive,
		IsManualMileage: train.IsManualMileage,
		CreatedAt:       train.CreatedAt.Unix(),
	}
	if train.Depot != nil {
		doc.DepotName = train.Depot.Name
	}
	return doc
}

// parseTrainFromHit converts a search hit to a TrainDocument
func parseTrainFromHit(hit interface{}) TrainDocument {
	hitMap, ok := hit.(map[string]interface{})
	if !ok {
		return TrainDocument{}
	}
	doc := TrainDocument{
		Name:      getString(hitMap, "name"),
		Type:      getString(hitMap, "type"),
		DepotName: getString(hitMap, "depot_name"),
	}
	if id, ok := hitMap["id"].(float64); ok {
		doc.ID = uint(id)
	}
	if depotID, ok := hitMap["depot_id"].(float64); ok {
		doc.DepotID = uint(depotID)
	}
	if active, ok := hitMap["is_active"].(bool); ok {
		doc.IsActive = active
	}
	if manual, ok := hitMap["is_manual_mileage"].(bool); ok {
		doc.IsManualMileage = manual
	}
	if created, ok := hitMap["created_at"].(float64); ok {
		doc.CreatedAt = int64(created)
	}
	return doc
}

// getString safely extracts a string from map
func getString(m map[string]interface{}, key string) string {
	if val, ok := m[key].(string); ok {
		return val
	}
	return ""
}
