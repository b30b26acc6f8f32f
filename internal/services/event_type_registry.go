package services

import (
	"fmt"
	"sync"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
)

// EventTypeRegistry serves the event type reference data from a process-wide
// cache filled on first use.
type EventTypeRegistry interface {
	GetAll() ([]models.EventType, error)
	FindByID(id int64) (*models.EventType, error)
	FindByCode(code string) (*models.EventType, error)
	IsTransfer(id int64) (bool, error)
	IncrementsWashCount(id int64) (bool, error)
	ClearCache()
}

type eventTypeRegistry struct {
	repo repositories.EventTypeRepository

	mu     sync.RWMutex
	cached []models.EventType // nil until the first successful load
}

// NewEventTypeRegistry creates a new instance of EventTypeRegistry.
func NewEventTypeRegistry(repo repositories.EventTypeRepository) EventTypeRegistry {
	return &eventTypeRegistry{repo: repo}
}

func (r *eventTypeRegistry) load() ([]models.EventType, error) {
	r.mu.RLock()
	cached := r.cached
	r.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return r.cached, nil
	}
	types, err := r.repo.GetActiveEventTypes()
	if err != nil {
		return nil, fmt.Errorf("loading event types: %w", err)
	}
	if types == nil {
		types = []models.EventType{}
	}
	r.cached = types
	return types, nil
}

// GetAll returns the active event types ordered by sort order and name. The
// returned slice is a copy.
func (r *eventTypeRegistry) GetAll() ([]models.EventType, error) {
	types, err := r.load()
	if err != nil {
		return nil, err
	}
	out := make([]models.EventType, len(types))
	copy(out, types)
	return out, nil
}

func (r *eventTypeRegistry) FindByID(id int64) (*models.EventType, error) {
	types, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range types {
		if types[i].ID == id {
			et := types[i]
			return &et, nil
		}
	}
	return nil, fmt.Errorf("%w: id %d", ErrEventTypeNotFound, id)
}

func (r *eventTypeRegistry) FindByCode(code string) (*models.EventType, error) {
	types, err := r.load()
	if err != nil {
		return nil, err
	}
	for i := range types {
		if types[i].Code == code {
			et := types[i]
			return &et, nil
		}
	}
	return nil, fmt.Errorf("%w: code %q", ErrEventTypeNotFound, code)
}

func (r *eventTypeRegistry) IsTransfer(id int64) (bool, error) {
	et, err := r.FindByID(id)
	if err != nil {
		return false, err
	}
	return et.IsTransfer, nil
}

func (r *eventTypeRegistry) IncrementsWashCount(id int64) (bool, error) {
	et, err := r.FindByID(id)
	if err != nil {
		return false, err
	}
	return et.IncrementsWashCount, nil
}

// ClearCache drops the cached types; the next lookup queries the database again.
func (r *eventTypeRegistry) ClearCache() {
	r.mu.Lock()
	r.cached = nil
	r.mu.Unlock()
}
