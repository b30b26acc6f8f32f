package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
)

// EventTemplateOptions carries the optional attributes of a new template.
type EventTemplateOptions struct {
	UnitID          *int64
	TargetUnitID    *int64
	IsReusable      *bool // defaults to true
	Notes           *string
	CreatedByUserID *int64
}

// CreateEventTemplateRequest DTO
type CreateEventTemplateRequest struct {
	EventTypeID  int64   `json:"event_type_id" binding:"required"`
	Label        string  `json:"label" binding:"required"`
	UnitID       *int64  `json:"unit_id"`
	TargetUnitID *int64  `json:"target_unit_id"`
	IsReusable   *bool   `json:"is_reusable"`
	Notes        *string `json:"notes"`
}

// Options converts the request into creation options attributed to userID.
func (r CreateEventTemplateRequest) Options(userID int64) EventTemplateOptions {
	return EventTemplateOptions{
		UnitID:          r.UnitID,
		TargetUnitID:    r.TargetUnitID,
		IsReusable:      r.IsReusable,
		Notes:           r.Notes,
		CreatedByUserID: &userID,
	}
}

// EventTemplateService manages the saved event presets of an organization.
// It knows nothing about one-shot consumption; EventService deletes a
// non-reusable template after using it.
type EventTemplateService interface {
	Create(orgID, eventTypeID int64, label string, opts EventTemplateOptions) (int64, error)
	Update(id, orgID int64, fields map[string]interface{}) (*models.EventTemplate, error)
	Delete(id int64) error
	FindByIDAndOrganization(id, orgID int64) (*models.EventTemplate, error)
	FindByOrganization(orgID int64, filters models.EventTemplateFilters) ([]models.EventTemplate, int, error)
}

type eventTemplateService struct {
	templateRepo repositories.EventTemplateRepository
	orgRepo      repositories.OrganizationRepository
	registry     EventTypeRegistry
	db           *sql.DB
}

// NewEventTemplateService creates a new instance of EventTemplateService.
func NewEventTemplateService(
	templateRepo repositories.EventTemplateRepository,
	orgRepo repositories.OrganizationRepository,
	registry EventTypeRegistry,
	db *sql.DB,
) EventTemplateService {
	return &eventTemplateService{
		templateRepo: templateRepo,
		orgRepo:      orgRepo,
		registry:     registry,
		db:           db,
	}
}

func (s *eventTemplateService) Create(orgID, eventTypeID int64, label string, opts EventTemplateOptions) (int64, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return 0, fmt.Errorf("%w: label is required", ErrValidation)
	}
	if _, err := s.registry.FindByID(eventTypeID); err != nil {
		return 0, err
	}
	if err := checkUnitOwnership(s.orgRepo, orgID, opts.UnitID, opts.TargetUnitID); err != nil {
		return 0, err
	}

	reusable := true
	if opts.IsReusable != nil {
		reusable = *opts.IsReusable
	}
	tpl := models.EventTemplate{
		OrganizationID:  orgID,
		EventTypeID:     eventTypeID,
		Label:           label,
		UnitID:          opts.UnitID,
		TargetUnitID:    opts.TargetUnitID,
		IsReusable:      reusable,
		Notes:           trimmedOrNil(opts.Notes),
		CreatedByUserID: opts.CreatedByUserID,
	}
	id, err := s.templateRepo.CreateEventTemplate(s.db, &tpl)
	if err != nil {
		return 0, fmt.Errorf("failed to create event template: %w", err)
	}
	return id, nil
}

// Update applies a partial update decoded from JSON. Keys outside the
// allow-list are dropped; values are converted to their column types.
func (s *eventTemplateService) Update(id, orgID int64, fields map[string]interface{}) (*models.EventTemplate, error) {
	if _, err := s.FindByIDAndOrganization(id, orgID); err != nil {
		return nil, err
	}

	updates, err := s.normalizeTemplateFields(orgID, repositories.FilterAllowedFields(fields, repositories.EventTemplateUpdatableFields))
	if err != nil {
		return nil, err
	}
	if err := s.templateRepo.UpdateEventTemplate(s.db, id, updates); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		if errors.Is(err, repositories.ErrNoFieldsToUpdate) {
			return nil, ErrNoFieldsToUpdate
		}
		return nil, fmt.Errorf("failed to update event template: %w", err)
	}
	return s.FindByIDAndOrganization(id, orgID)
}

func (s *eventTemplateService) normalizeTemplateFields(orgID int64, fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		switch key {
		case "event_type_id":
			typeID, ok := toInt64(value)
			if !ok {
				return nil, fmt.Errorf("%w: event_type_id must be a number", ErrValidation)
			}
			if _, err := s.registry.FindByID(typeID); err != nil {
				return nil, err
			}
			out[key] = typeID
		case "label":
			label, ok := value.(string)
			if !ok || strings.TrimSpace(label) == "" {
				return nil, fmt.Errorf("%w: label must be a non-empty string", ErrValidation)
			}
			out[key] = strings.TrimSpace(label)
		case "unit_id", "target_unit_id":
			if value == nil {
				out[key] = nil
				continue
			}
			unitID, ok := toInt64(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a number or null", ErrValidation, key)
			}
			if err := checkUnitOwnership(s.orgRepo, orgID, &unitID); err != nil {
				return nil, err
			}
			out[key] = unitID
		case "is_reusable":
			reusable, ok := value.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: is_reusable must be a boolean", ErrValidation)
			}
			out[key] = reusable
		case "notes":
			if value == nil {
				out[key] = nil
				continue
			}
			notes, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: notes must be a string or null", ErrValidation)
			}
			out[key] = notes
		}
	}
	return out, nil
}

// Delete removes the template without an ownership check.
func (s *eventTemplateService) Delete(id int64) error {
	if err := s.templateRepo.DeleteEventTemplate(s.db, id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrTemplateNotFound
		}
		return fmt.Errorf("failed to delete event template: %w", err)
	}
	return nil
}

func (s *eventTemplateService) FindByIDAndOrganization(id, orgID int64) (*models.EventTemplate, error) {
	tpl, err := s.templateRepo.FindEventTemplateByIDAndOrganization(id, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to get event template: %w", err)
	}
	return tpl, nil
}

func (s *eventTemplateService) FindByOrganization(orgID int64, filters models.EventTemplateFilters) ([]models.EventTemplate, int, error) {
	limit, offset := 0, 0
	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		limit, offset = filters.PageSize, (page-1)*filters.PageSize
	}
	templates, total, err := s.templateRepo.FindEventTemplatesByOrganization(orgID, filters.IsReusable, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list event templates: %w", err)
	}
	return templates, total, nil
}

// checkUnitOwnership verifies that every non-nil unit id belongs to orgID.
func checkUnitOwnership(orgRepo repositories.OrganizationRepository, orgID int64, unitIDs ...*int64) error {
	for _, unitID := range unitIDs {
		if unitID == nil {
			continue
		}
		unit, err := orgRepo.GetUnitByID(*unitID)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return fmt.Errorf("%w: id %d", ErrUnitNotFound, *unitID)
			}
			return fmt.Errorf("failed to look up unit: %w", err)
		}
		if unit.OrganizationID != orgID {
			return fmt.Errorf("%w: id %d", ErrUnitNotFound, *unitID)
		}
	}
	return nil
}

// toInt64 accepts the numeric forms produced by encoding/json and by callers
// building maps by hand.
func toInt64(value interface{}) (int64, bool) {
	switch v := value.(type) {
	case float64:
		if v != float64(int64(v)) {
			return 0, false
		}
		return int64(v), true
	case int64:
		return v, true
	case int:
		return int64(v), true
	default:
		return 0, false
	}
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
