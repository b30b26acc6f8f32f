package services

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hospitex_portal/internal/metrics"
	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
	"hospitex_portal/pkg/utils"
)

// EventOptions carries the optional columns of a new event. A nil EventAt
// creates a pending event.
type EventOptions struct {
	TemplateID      *int64
	FromUnitID      *int64
	ToUnitID        *int64
	ScannedByUnitID *int64
	Metadata        models.EventMetadata
	EventAt         *time.Time
}

// RFIDHistory is a tag's counters together with the caller's events for it.
type RFIDHistory struct {
	Tag    *models.RFIDTag `json:"tag"`
	Events []models.Event  `json:"events"`
}

// EventService records events and keeps the RFID tag counters in step.
type EventService interface {
	Create(eventTypeCode string, orgID int64, metadata models.EventMetadata, rfids []string, eventAt *time.Time) (*models.Event, error)
	CreateWithType(eventTypeID, orgID int64, opts EventOptions, rfids []string) (*models.Event, error)
	CreateFromTemplate(templateID, orgID int64, scannedByUnitID *int64, rfids []string, extra map[string]any) (*models.Event, error)
	FindByID(id, orgID int64) (*models.Event, error)
	FindByOrganization(orgID int64, filters models.EventFilters) ([]models.Event, int, error)
	FindByRFID(rfid string, orgID int64) ([]models.Event, error)
	GetRFIDHistory(rfid string, orgID int64) (*RFIDHistory, error)
	CountByType(orgID int64) ([]models.EventTypeCount, error)
	UpdatePendingMetadata(id, orgID int64, metadata models.EventMetadata) (*models.Event, error)
	DeletePending(id, orgID int64) error
}

type eventService struct {
	eventRepo    repositories.EventRepository
	rfidRepo     repositories.RFIDRepository
	templateRepo repositories.EventTemplateRepository
	orgRepo      repositories.OrganizationRepository
	registry     EventTypeRegistry
	tx           repositories.TxRunner
	db           *sql.DB
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewEventService creates a new instance of EventService.
func NewEventService(
	eventRepo repositories.EventRepository,
	rfidRepo repositories.RFIDRepository,
	templateRepo repositories.EventTemplateRepository,
	orgRepo repositories.OrganizationRepository,
	registry EventTypeRegistry,
	tx repositories.TxRunner,
	db *sql.DB,
	m *metrics.Metrics,
) EventService {
	return &eventService{
		eventRepo:    eventRepo,
		rfidRepo:     rfidRepo,
		templateRepo: templateRepo,
		orgRepo:      orgRepo,
		registry:     registry,
		tx:           tx,
		db:           db,
		metrics:      m,
		now:          time.Now,
	}
}

// Create is the code-based entry point. A nil eventAt means now.
func (s *eventService) Create(eventTypeCode string, orgID int64, metadata models.EventMetadata, rfids []string, eventAt *time.Time) (*models.Event, error) {
	eventType, err := s.registry.FindByCode(eventTypeCode)
	if err != nil {
		return nil, err
	}
	if eventAt == nil {
		now := s.now()
		eventAt = &now
	}
	return s.CreateWithType(eventType.ID, orgID, EventOptions{Metadata: metadata, EventAt: eventAt}, rfids)
}

// CreateWithType inserts the event, its RFID links and the tag counter updates
// in one transaction. Nothing is written when the type is unknown or a unit
// belongs to another organization.
func (s *eventService) CreateWithType(eventTypeID, orgID int64, opts EventOptions, rfids []string) (*models.Event, error) {
	eventType, err := s.registry.FindByID(eventTypeID)
	if err != nil {
		return nil, err
	}
	if err := checkUnitOwnership(s.orgRepo, orgID, opts.FromUnitID, opts.ToUnitID, opts.ScannedByUnitID); err != nil {
		return nil, err
	}

	metadata := opts.Metadata
	if metadata == nil {
		metadata, _ = models.DecodeEventMetadata(models.MetadataKindFor(eventType.Code, opts.TemplateID != nil), nil)
	}
	event := models.Event{
		OrganizationID:  orgID,
		EventTypeID:     eventType.ID,
		EventType:       eventType.Code,
		TemplateID:      opts.TemplateID,
		FromUnitID:      opts.FromUnitID,
		ToUnitID:        opts.ToUnitID,
		ScannedByUnitID: opts.ScannedByUnitID,
		Metadata:        metadata,
		EventAt:         opts.EventAt,
	}
	tags := normalizeRFIDs(rfids)

	// tag timestamps follow the event; a pending event touches them at creation time
	touchedAt := s.now()
	if opts.EventAt != nil {
		touchedAt = *opts.EventAt
	}

	err = s.tx.WithTx(func(exec repositories.SQLExecutor) error {
		if _, err := s.eventRepo.CreateEvent(exec, &event); err != nil {
			return err
		}
		for _, rfid := range tags {
			if err := s.rfidRepo.TouchTag(exec, rfid, event.ID, touchedAt, eventType.IncrementsWashCount); err != nil {
				return err
			}
			if err := s.rfidRepo.LinkEventRFID(exec, event.ID, rfid); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		utils.LogError(err, "EventService: event creation rolled back", map[string]interface{}{
			"organization_id": orgID,
			"event_type":      eventType.Code,
			"rfid_count":      len(tags),
		})
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	s.metrics.EventCreated(eventType.Code)
	event.RFIDs = tags
	event.Label = eventType.Label()
	return &event, nil
}

// CreateFromTemplate creates an event pre-filled from a template of orgID.
// A non-reusable template is deleted once the event is committed; a failed
// delete is logged and does not undo the event.
func (s *eventService) CreateFromTemplate(templateID, orgID int64, scannedByUnitID *int64, rfids []string, extra map[string]any) (*models.Event, error) {
	tpl, err := s.templateRepo.FindEventTemplateByIDAndOrganization(templateID, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrTemplateNotFound
		}
		return nil, fmt.Errorf("failed to load event template: %w", err)
	}

	metadata := models.RepetitiveMetadata{
		Label:  tpl.Label,
		UnitID: tpl.UnitID,
		Notes:  utils.DerefString(tpl.Notes, ""),
	}
	for key, value := range extra {
		if key == "notes" {
			if notes, ok := value.(string); ok {
				metadata.Notes = notes
				continue
			}
		}
		if metadata.Extra == nil {
			metadata.Extra = make(map[string]any, len(extra))
		}
		metadata.Extra[key] = value
	}

	now := s.now()
	event, err := s.CreateWithType(tpl.EventTypeID, orgID, EventOptions{
		TemplateID:      &tpl.ID,
		FromUnitID:      tpl.UnitID,
		ToUnitID:        tpl.TargetUnitID,
		ScannedByUnitID: scannedByUnitID,
		Metadata:        metadata,
		EventAt:         &now,
	}, rfids)
	if err != nil {
		return nil, err
	}

	if !tpl.IsReusable {
		if err := s.templateRepo.DeleteEventTemplate(s.db, tpl.ID); err != nil {
			utils.LogError(err, "EventService: one-shot template was used but could not be deleted", map[string]interface{}{
				"template_id":     tpl.ID,
				"event_id":        event.ID,
				"organization_id": orgID,
			})
		}
	}
	return event, nil
}

func (s *eventService) FindByID(id, orgID int64) (*models.Event, error) {
	event, err := s.eventRepo.GetEventByID(id, orgID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	events := []models.Event{*event}
	if err := s.decorate(events); err != nil {
		return nil, err
	}
	return &events[0], nil
}

func (s *eventService) FindByOrganization(orgID int64, filters models.EventFilters) ([]models.Event, int, error) {
	events, total, err := s.eventRepo.GetEventsByOrganization(orgID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list events: %w", err)
	}
	if err := s.decorate(events); err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *eventService) FindByRFID(rfid string, orgID int64) ([]models.Event, error) {
	rfid = strings.TrimSpace(rfid)
	if rfid == "" {
		return nil, fmt.Errorf("%w: rfid is required", ErrValidation)
	}
	events, err := s.eventRepo.GetEventsByRFID(rfid, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list events for RFID: %w", err)
	}
	if err := s.decorate(events); err != nil {
		return nil, err
	}
	return events, nil
}

// GetRFIDHistory returns the tag counters only when orgID has at least one
// event for the tag; tags are shared across organizations.
func (s *eventService) GetRFIDHistory(rfid string, orgID int64) (*RFIDHistory, error) {
	events, err := s.FindByRFID(rfid, orgID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrRFIDNotFound
	}
	tag, err := s.rfidRepo.GetTag(strings.TrimSpace(rfid))
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrRFIDNotFound
		}
		return nil, fmt.Errorf("failed to get RFID tag: %w", err)
	}
	return &RFIDHistory{Tag: tag, Events: events}, nil
}

func (s *eventService) CountByType(orgID int64) ([]models.EventTypeCount, error) {
	counts, err := s.eventRepo.CountEventsByType(orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for i := range counts {
		if et, err := s.registry.FindByID(counts[i].EventTypeID); err == nil {
			counts[i].Label = et.Label()
		} else {
			counts[i].Label = counts[i].Code
		}
	}
	return counts, nil
}

// UpdatePendingMetadata replaces the metadata of an event that has not occurred yet.
func (s *eventService) UpdatePendingMetadata(id, orgID int64, metadata models.EventMetadata) (*models.Event, error) {
	existing, err := s.FindByID(id, orgID)
	if err != nil {
		return nil, err
	}
	if !existing.IsPending() {
		return nil, ErrEventNotPending
	}
	n, err := s.eventRepo.UpdatePendingEventMetadata(s.db, id, orgID, metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to update event metadata: %w", err)
	}
	if n == 0 {
		// occurred or vanished since the read above
		return nil, ErrEventNotPending
	}
	return s.FindByID(id, orgID)
}

// DeletePending deletes an event that has not occurred yet. Historical events
// are never deleted.
func (s *eventService) DeletePending(id, orgID int64) error {
	existing, err := s.FindByID(id, orgID)
	if err != nil {
		return err
	}
	if !existing.IsPending() {
		return ErrEventNotPending
	}
	n, err := s.eventRepo.DeletePendingEvent(s.db, id, orgID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if n == 0 {
		return ErrEventNotPending
	}
	return nil
}

// decorate attaches the linked RFIDs and the registry label to each event.
func (s *eventService) decorate(events []models.Event) error {
	if len(events) == 0 {
		return nil
	}
	ids := make([]int64, len(events))
	for i := range events {
		ids[i] = events[i].ID
	}
	links, err := s.eventRepo.GetEventRFIDs(ids)
	if err != nil {
		return fmt.Errorf("failed to load event RFIDs: %w", err)
	}
	for i := range events {
		events[i].RFIDs = links[events[i].ID]
		if et, err := s.registry.FindByID(events[i].EventTypeID); err == nil {
			events[i].Label = et.Label()
		} else {
			// inactive types drop out of the registry
			events[i].Label = events[i].EventType
		}
	}
	return nil
}

// normalizeRFIDs trims the identifiers and drops blanks and repeats, keeping
// first-seen order.
func normalizeRFIDs(rfids []string) []string {
	out := make([]string, 0, len(rfids))
	seen := make(map[string]struct{}, len(rfids))
	for _, rfid := range rfids {
		rfid = strings.TrimSpace(rfid)
		if rfid == "" {
			continue
		}
		if _, dup := seen[rfid]; dup {
			continue
		}
		seen[rfid] = struct{}{}
		out = append(out, rfid)
	}
	return out
}
