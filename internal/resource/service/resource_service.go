// SPDX-License-Identifier: BSL-1.1

// Package service implements resource CRUD, scheduling inputs
// (business hours, blackout dates) and search (§4.3, §6).
package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/meilisearch/meilisearch-go"

	"github.com/slotforge/pkg/cache"
	"github.com/slotforge/pkg/models"
	"github.com/slotforge/slotforge/internal/resource/repository"
	resourcemodels "github.com/slotforge/slotforge/internal/resource/models"
)

var (
	ErrResourceNotFound      = repository.ErrResourceNotFound
	ErrResourceAlreadyExists = repository.ErrResourceAlreadyExists
)

// EventPublisher is satisfied by the event bus.
type EventPublisher interface {
	Publish(topic string, data interface{})
}

// SearchIndex is satisfied by a thin Meilisearch wrapper; nil means
// search falls back to the repository's ILIKE scan.
type SearchIndex interface {
	IndexResource(ctx context.Context, r *resourcemodels.Resource) error
	DeleteResource(ctx context.Context, id string) error
	Search(ctx context.Context, query string) ([]string, error)
}

// ResourceService implements resource CRUD and the scheduling inputs.
type ResourceService struct {
	resources *repository.ResourceRepository
	schedule  *repository.ScheduleRepository
	cache     cache.Cache
	search    SearchIndex
	events    EventPublisher
	logger    *slog.Logger
}

// NewResourceService creates a new resource service.
func NewResourceService(
	resources *repository.ResourceRepository,
	schedule *repository.ScheduleRepository,
	cache cache.Cache,
	search SearchIndex,
	events EventPublisher,
	logger *slog.Logger,
) *ResourceService {
	return &ResourceService{resources: resources, schedule: schedule, cache: cache, search: search, events: events, logger: logger}
}

// Create inserts a new resource, admin-only at the route layer.
func (s *ResourceService) Create(ctx context.Context, req resourcemodels.CreateResourceRequest) (*resourcemodels.Resource, error) {
	res := &resourcemodels.Resource{
		TimestampedEntity: models.TimestampedEntity{Entity: models.Entity{ID: uuid.New()}},
		Name:              req.Name,
		Description:       req.Description,
		Tags:              req.Tags,
		BaseAvailable:     req.BaseAvailable,
		Status:            models.ResourceAvailable.String(),
		AutoResetHours:    req.AutoResetHours,
	}

	if err := s.resources.Create(ctx, res); err != nil {
		return nil, err
	}

	s.indexAsync(res)
	return res, nil
}

// Get retrieves a resource by id, using the tiered cache.
func (s *ResourceService) Get(ctx context.Context, id uuid.UUID) (*resourcemodels.Resource, error) {
	key := cache.ResourceByIDKey(id.String())
	var res resourcemodels.Resource
	if err := s.cache.Get(ctx, key, &res); err == nil {
		return &res, nil
	}

	r, err := s.resources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	_ = s.cache.Set(ctx, key, r, 5*time.Minute)
	return r, nil
}

// List returns every resource.
func (s *ResourceService) List(ctx context.Context) ([]*resourcemodels.Resource, error) {
	return s.resources.List(ctx)
}

// Search queries the configured Meilisearch index, falling back to a
// plain ILIKE scan when search is unconfigured (§6: GET /resources/search).
func (s *ResourceService) Search(ctx context.Context, query string) ([]*resourcemodels.Resource, error) {
	if s.search == nil {
		return s.resources.SearchFallback(ctx, query)
	}

	ids, err := s.search.Search(ctx, query)
	if err != nil {
		s.logger.Warn("meilisearch query failed, falling back to ILIKE scan", "error", err)
		return s.resources.SearchFallback(ctx, query)
	}

	out := make([]*resourcemodels.Resource, 0, len(ids))
	for _, idStr := range ids {
		id, err := uuid.Parse(idStr)
		if err != nil {
			continue
		}
		r, err := s.resources.GetByID(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Update replaces a resource's mutable attributes.
func (s *ResourceService) Update(ctx context.Context, id uuid.UUID, req resourcemodels.UpdateResourceRequest) (*resourcemodels.Resource, error) {
	res, err := s.resources.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	wasUnavailable := res.IsUnavailable()

	res.Name = req.Name
	res.Description = req.Description
	res.Tags = req.Tags
	res.BaseAvailable = req.BaseAvailable
	res.Status = req.Status
	res.AutoResetHours = req.AutoResetHours

	if res.Status == models.ResourceUnavailable.String() {
		if res.UnavailableSince == nil {
			now := time.Now()
			res.UnavailableSince = &now
		}
	} else {
		res.UnavailableSince = nil
	}

	if err := s.resources.Update(ctx, res); err != nil {
		return nil, err
	}

	_ = s.cache.Delete(ctx, cache.ResourceCacheKeys(id.String())...)
	s.indexAsync(res)

	if wasUnavailable && !res.IsUnavailable() {
		s.events.Publish("resource.reopened", map[string]string{"resource_id": id.String()})
	}

	return res, nil
}

// Delete removes a resource.
func (s *ResourceService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.resources.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.cache.Delete(ctx, cache.ResourceCacheKeys(id.String())...)
	if s.search != nil {
		_ = s.search.DeleteResource(ctx, id.String())
	}
	return nil
}

// SetBusinessHours replaces the weekly schedule for a resource
// (resourceID nil replaces the global default schedule).
func (s *ResourceService) SetBusinessHours(ctx context.Context, resourceID *uuid.UUID, rows []resourcemodels.BusinessHoursRow) error {
	converted := make([]*resourcemodels.BusinessHours, len(rows))
	for i, row := range rows {
		converted[i] = &resourcemodels.BusinessHours{
			ResourceID:  resourceID,
			Weekday:     row.Weekday,
			OpenMinute:  row.OpenMinute,
			CloseMinute: row.CloseMinute,
			Closed:      row.Closed,
		}
	}
	if err := s.schedule.ReplaceBusinessHours(ctx, resourceID, converted); err != nil {
		return err
	}
	if resourceID != nil {
		_ = s.cache.Delete(ctx, cache.BusinessHoursKey(resourceID.String()))
	}
	return nil
}

// CreateBlackout adds a blackout date, global when resourceID is nil.
func (s *ResourceService) CreateBlackout(ctx context.Context, resourceID *uuid.UUID, date time.Time, reason string) (*resourcemodels.BlackoutDate, error) {
	b := &resourcemodels.BlackoutDate{
		Entity:     models.Entity{ID: uuid.New()},
		ResourceID: resourceID,
		Date:       date,
		Reason:     reason,
	}
	if err := s.schedule.CreateBlackout(ctx, b); err != nil {
		return nil, fmt.Errorf("failed to create blackout: %w", err)
	}
	return b, nil
}

// DeleteBlackout removes a blackout date.
func (s *ResourceService) DeleteBlackout(ctx context.Context, id uuid.UUID) error {
	return s.schedule.DeleteBlackout(ctx, id)
}

// ApplyAutoReset transitions due resources back to available. Called
// by the background scheduler (§4.7).
func (s *ResourceService) ApplyAutoReset(ctx context.Context, now time.Time) (int, error) {
	due, err := s.resources.ListDueForAutoReset(ctx, now)
	if err != nil {
		return 0, err
	}

	for _, res := range due {
		if err := s.resources.SetStatus(ctx, res.ID, models.ResourceAvailable.String(), nil); err != nil {
			s.logger.Error("auto-reset failed", "resource_id", res.ID, "error", err)
			continue
		}
		_ = s.cache.Delete(ctx, cache.ResourceCacheKeys(res.ID.String())...)
		s.events.Publish("resource.reopened", map[string]string{"resource_id": res.ID.String()})
	}

	return len(due), nil
}

func (s *ResourceService) indexAsync(res *resourcemodels.Resource) {
	if s.search == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.search.IndexResource(ctx, res); err != nil {
			s.logger.Warn("failed to index resource in search", "resource_id", res.ID, "error", err)
		}
	}()
}

// meilisearchIndex adapts the Meilisearch client to SearchIndex.
type meilisearchIndex struct {
	client meilisearch.ServiceManager
	index  string
}

// NewMeilisearchIndex builds a SearchIndex backed by Meilisearch, or
// nil when url is empty (caller should pass the nil SearchIndex to
// ResourceService in that case, not this adapter).
func NewMeilisearchIndex(url, apiKey, indexName string) SearchIndex {
	if url == "" {
		return nil
	}
	client := meilisearch.New(url, meilisearch.WithAPIKey(apiKey))
	return &meilisearchIndex{client: client, index: indexName}
}

type meiliResourceDoc struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (m *meilisearchIndex) IndexResource(ctx context.Context, r *resourcemodels.Resource) error {
	doc := meiliResourceDoc{ID: r.ID.String(), Name: r.Name, Description: r.Description, Tags: r.Tags}
	_, err := m.client.Index(m.index).AddDocuments([]meiliResourceDoc{doc}, nil)
	return err
}

func (m *meilisearchIndex) DeleteResource(ctx context.Context, id string) error {
	_, err := m.client.Index(m.index).DeleteDocument(id)
	return err
}

func (m *meilisearchIndex) Search(ctx context.Context, query string) ([]string, error) {
	resp, err := m.client.Index(m.index).Search(query, &meilisearch.SearchRequest{Limit: 50})
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		doc, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		if id, ok := doc["id"].(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}
