package services

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
)

// --- event types ---

type fakeEventTypeRepo struct {
	types []models.EventType
	err   error
	calls int
}

func (f *fakeEventTypeRepo) GetActiveEventTypes() ([]models.EventType, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([]models.EventType, len(f.types))
	copy(out, f.types)
	return out, nil
}

func seedEventTypes() []models.EventType {
	return []models.EventType{
		{ID: 1, Code: models.EventTypeRegistration, Name: "Registrierung", SortOrder: 10, IsActive: true},
		{ID: 2, Code: models.EventTypeDelivery, Name: "Lieferung", IsTransfer: true, SortOrder: 20, IsActive: true},
		{ID: 3, Code: models.EventTypeWash, Name: "Wäsche", IncrementsWashCount: true, SortOrder: 30, IsActive: true},
		{ID: 4, Code: models.EventTypeInventory, Name: "Inventur", SortOrder: 40, IsActive: true},
		{ID: 5, Code: models.EventTypeRepetitive, Name: "Wiederkehrend", SortOrder: 50, IsActive: true},
	}
}

// --- organizations and units ---

type fakeOrgRepo struct {
	orgs  map[int64]models.Organization
	units map[int64]models.Unit
}

func newFakeOrgRepo() *fakeOrgRepo {
	return &fakeOrgRepo{
		orgs: map[int64]models.Organization{
			1: {ID: 1, Name: "Klinikum Nord"},
			2: {ID: 2, Name: "Wäscherei Süd"},
			3: {ID: 3, Name: "Pflegeheim West"},
		},
		units: map[int64]models.Unit{
			10: {ID: 10, OrganizationID: 1, Name: "Station A"},
			11: {ID: 11, OrganizationID: 1, Name: "Station B"},
			20: {ID: 20, OrganizationID: 2, Name: "Annahme"},
		},
	}
}

func (f *fakeOrgRepo) GetOrganizationByID(id int64) (*models.Organization, error) {
	org, ok := f.orgs[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &org, nil
}

func (f *fakeOrgRepo) FindOrganizationByName(name string) (*models.Organization, error) {
	for _, org := range f.orgs {
		if strings.EqualFold(org.Name, name) {
			o := org
			return &o, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeOrgRepo) GetUnitByID(id int64) (*models.Unit, error) {
	unit, ok := f.units[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &unit, nil
}

func (f *fakeOrgRepo) FindUnitByName(organizationID int64, name string) (*models.Unit, error) {
	for _, unit := range f.units {
		if unit.OrganizationID == organizationID && strings.EqualFold(unit.Name, name) {
			u := unit
			return &u, nil
		}
	}
	return nil, repositories.ErrNotFound
}

// --- templates ---

type fakeTemplateRepo struct {
	nextID    int64
	templates map[int64]models.EventTemplate
	deleteErr error
}

func newFakeTemplateRepo() *fakeTemplateRepo {
	return &fakeTemplateRepo{templates: map[int64]models.EventTemplate{}}
}

func (f *fakeTemplateRepo) CreateEventTemplate(_ repositories.SQLExecutor, tpl *models.EventTemplate) (int64, error) {
	f.nextID++
	tpl.ID = f.nextID
	tpl.CreatedAt = time.Now()
	f.templates[tpl.ID] = *tpl
	return tpl.ID, nil
}

func (f *fakeTemplateRepo) UpdateEventTemplate(_ repositories.SQLExecutor, id int64, fields map[string]interface{}) error {
	fields = repositories.FilterAllowedFields(fields, repositories.EventTemplateUpdatableFields)
	if len(fields) == 0 {
		return repositories.ErrNoFieldsToUpdate
	}
	tpl, ok := f.templates[id]
	if !ok {
		return repositories.ErrNotFound
	}
	for key, value := range fields {
		switch key {
		case "event_type_id":
			tpl.EventTypeID = value.(int64)
		case "label":
			tpl.Label = value.(string)
		case "unit_id":
			tpl.UnitID = optionalInt64(value)
		case "target_unit_id":
			tpl.TargetUnitID = optionalInt64(value)
		case "is_reusable":
			tpl.IsReusable = value.(bool)
		case "notes":
			if value == nil {
				tpl.Notes = nil
			} else {
				notes := value.(string)
				tpl.Notes = &notes
			}
		}
	}
	f.templates[id] = tpl
	return nil
}

func optionalInt64(value interface{}) *int64 {
	if value == nil {
		return nil
	}
	v := value.(int64)
	return &v
}

func (f *fakeTemplateRepo) DeleteEventTemplate(_ repositories.SQLExecutor, id int64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.templates[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.templates, id)
	return nil
}

func (f *fakeTemplateRepo) FindEventTemplateByIDAndOrganization(id, organizationID int64) (*models.EventTemplate, error) {
	tpl, ok := f.templates[id]
	if !ok || tpl.OrganizationID != organizationID {
		return nil, repositories.ErrNotFound
	}
	return &tpl, nil
}

func (f *fakeTemplateRepo) FindEventTemplatesByOrganization(organizationID int64, isReusable *bool, limit, offset int) ([]models.EventTemplate, int, error) {
	var out []models.EventTemplate
	for _, tpl := range f.templates {
		if tpl.OrganizationID != organizationID {
			continue
		}
		if isReusable != nil && tpl.IsReusable != *isReusable {
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, total, nil
}

// --- events and RFID tags share one store so fakeTx can roll both back ---

type memStore struct {
	nextEventID int64
	events      map[int64]models.Event
	links       map[int64][]string
	tags        map[string]models.RFIDTag
}

func newMemStore() *memStore {
	return &memStore{
		events: map[int64]models.Event{},
		links:  map[int64][]string{},
		tags:   map[string]models.RFIDTag{},
	}
}

func (m *memStore) clone() memStore {
	c := memStore{
		nextEventID: m.nextEventID,
		events:      make(map[int64]models.Event, len(m.events)),
		links:       make(map[int64][]string, len(m.links)),
		tags:        make(map[string]models.RFIDTag, len(m.tags)),
	}
	for k, v := range m.events {
		c.events[k] = v
	}
	for k, v := range m.links {
		c.links[k] = append([]string(nil), v...)
	}
	for k, v := range m.tags {
		c.tags[k] = v
	}
	return c
}

func (m *memStore) linkCount() int {
	n := 0
	for _, l := range m.links {
		n += len(l)
	}
	return n
}

type fakeTx struct {
	store *memStore
	runs  int
}

func (f *fakeTx) WithTx(fn func(exec repositories.SQLExecutor) error) error {
	f.runs++
	snapshot := f.store.clone()
	if err := fn(nil); err != nil {
		*f.store = snapshot
		return err
	}
	return nil
}

type fakeEventRepo struct {
	store     *memStore
	createErr error
}

func (f *fakeEventRepo) CreateEvent(_ repositories.SQLExecutor, event *models.Event) (int64, error) {
	if f.createErr != nil {
		return 0, f.createErr
	}
	f.store.nextEventID++
	event.ID = f.store.nextEventID
	event.CreatedAt = time.Now()
	f.store.events[event.ID] = *event
	return event.ID, nil
}

func (f *fakeEventRepo) GetEventByID(id, organizationID int64) (*models.Event, error) {
	event, ok := f.store.events[id]
	if !ok || event.OrganizationID != organizationID {
		return nil, repositories.ErrNotFound
	}
	return &event, nil
}

func (f *fakeEventRepo) GetEventsByOrganization(organizationID int64, filters models.EventFilters) ([]models.Event, int, error) {
	out := []models.Event{}
	for _, event := range f.store.events {
		if event.OrganizationID != organizationID {
			continue
		}
		if filters.PendingOnly && event.EventAt != nil {
			continue
		}
		out = append(out, event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (f *fakeEventRepo) GetEventsByRFID(rfid string, organizationID int64) ([]models.Event, error) {
	out := []models.Event{}
	for id, tags := range f.store.links {
		event := f.store.events[id]
		if event.OrganizationID != organizationID {
			continue
		}
		for _, tag := range tags {
			if tag == rfid {
				out = append(out, event)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeEventRepo) GetEventRFIDs(eventIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(eventIDs))
	for _, id := range eventIDs {
		if tags, ok := f.store.links[id]; ok {
			out[id] = append([]string(nil), tags...)
		}
	}
	return out, nil
}

func (f *fakeEventRepo) CountEventsByType(organizationID int64) ([]models.EventTypeCount, error) {
	byType := map[int64]*models.EventTypeCount{}
	for _, event := range f.store.events {
		if event.OrganizationID != organizationID {
			continue
		}
		c, ok := byType[event.EventTypeID]
		if !ok {
			c = &models.EventTypeCount{EventTypeID: event.EventTypeID, Code: event.EventType}
			byType[event.EventTypeID] = c
		}
		c.Count++
	}
	out := []models.EventTypeCount{}
	for _, c := range byType {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventTypeID < out[j].EventTypeID })
	return out, nil
}

func (f *fakeEventRepo) UpdatePendingEventMetadata(_ repositories.SQLExecutor, id, organizationID int64, metadata models.EventMetadata) (int64, error) {
	event, ok := f.store.events[id]
	if !ok || event.OrganizationID != organizationID || event.EventAt != nil {
		return 0, nil
	}
	event.Metadata = metadata
	f.store.events[id] = event
	return 1, nil
}

func (f *fakeEventRepo) DeletePendingEvent(_ repositories.SQLExecutor, id, organizationID int64) (int64, error) {
	event, ok := f.store.events[id]
	if !ok || event.OrganizationID != organizationID || event.EventAt != nil {
		return 0, nil
	}
	delete(f.store.events, id)
	delete(f.store.links, id)
	return 1, nil
}

type fakeRFIDRepo struct {
	store  *memStore
	failOn string
}

func (f *fakeRFIDRepo) TouchTag(_ repositories.SQLExecutor, rfid string, eventID int64, eventAt time.Time, incrementWash bool) error {
	if rfid == f.failOn {
		return fmt.Errorf("%w: updating RFID tag %s: connection reset", repositories.ErrDatabaseError, rfid)
	}
	tag, ok := f.store.tags[rfid]
	if !ok {
		tag = models.RFIDTag{RFID: rfid}
	}
	if incrementWash {
		tag.WashCount++
	}
	if tag.FirstEventAt == nil {
		id, at := eventID, eventAt
		tag.FirstEventID, tag.FirstEventAt = &id, &at
	}
	id, at := eventID, eventAt
	tag.LastEventID, tag.LastEventAt = &id, &at
	f.store.tags[rfid] = tag
	return nil
}

func (f *fakeRFIDRepo) LinkEventRFID(_ repositories.SQLExecutor, eventID int64, rfid string) error {
	for _, existing := range f.store.links[eventID] {
		if existing == rfid {
			return repositories.ErrDuplicateKey
		}
	}
	f.store.links[eventID] = append(f.store.links[eventID], rfid)
	return nil
}

func (f *fakeRFIDRepo) GetTag(rfid string) (*models.RFIDTag, error) {
	tag, ok := f.store.tags[rfid]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &tag, nil
}

// --- shipments ---

type fakeShipmentRepo struct {
	mu        sync.Mutex
	nextID    int64
	shipments map[int64]models.Shipment
	takenQR   map[string]bool // codes the database already holds outside this fake
	yearBase  int             // shipments of the year counted on top of the map
	now       func() time.Time
}

func newFakeShipmentRepo(now func() time.Time) *fakeShipmentRepo {
	return &fakeShipmentRepo{shipments: map[int64]models.Shipment{}, takenQR: map[string]bool{}, now: now}
}

func (f *fakeShipmentRepo) CountShipmentsCreatedInYear(_ repositories.SQLExecutor, year int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.yearBase
	for _, s := range f.shipments {
		if s.CreatedAt.Year() == year {
			n++
		}
	}
	return n, nil
}

func (f *fakeShipmentRepo) CreateShipment(_ repositories.SQLExecutor, shipment *models.Shipment) (*models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.takenQR[shipment.QRCode] {
		return nil, fmt.Errorf("%w: creating shipment (constraint: shipments_qr_code_key)", repositories.ErrDuplicateKey)
	}
	for _, s := range f.shipments {
		if s.QRCode == shipment.QRCode {
			return nil, fmt.Errorf("%w: creating shipment (constraint: shipments_qr_code_key)", repositories.ErrDuplicateKey)
		}
	}
	f.nextID++
	shipment.ID = f.nextID
	shipment.Status = models.ShipmentStatusPrepared
	shipment.CreatedAt = f.now()
	f.shipments[shipment.ID] = *shipment
	return shipment, nil
}

func (f *fakeShipmentRepo) UpdatePreparedShipment(_ repositories.SQLExecutor, id int64, fields map[string]interface{}) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fields = repositories.FilterAllowedFields(fields, repositories.ShipmentUpdatableFields)
	if len(fields) == 0 {
		return 0, repositories.ErrNoFieldsToUpdate
	}
	s, ok := f.shipments[id]
	if !ok || s.Status != models.ShipmentStatusPrepared {
		return 0, nil
	}
	for key, value := range fields {
		switch key {
		case "notes":
			s.Notes = optionalString(value)
		case "sales_order_id":
			s.SalesOrderID = optionalString(value)
		case "purchase_order_id":
			s.PurchaseOrderID = optionalString(value)
		case "from_unit_id":
			s.FromUnitID = optionalInt64(value)
		case "to_unit_id":
			s.ToUnitID = optionalInt64(value)
		case "metadata":
			if value == nil {
				s.Metadata = nil
			} else {
				s.Metadata = []byte(value.(string))
			}
		}
	}
	f.shipments[id] = s
	return 1, nil
}

func optionalString(value interface{}) *string {
	switch v := value.(type) {
	case nil:
		return nil
	case *string:
		return v
	case string:
		return &v
	}
	return nil
}

func (f *fakeShipmentRepo) UpdateShipmentStatus(_ repositories.SQLExecutor, id int64, to models.ShipmentStatus, userID int64, at time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shipments[id]
	if !ok || !models.CanTransition(s.Status, to) {
		return 0, nil
	}
	s.Status = to
	switch to {
	case models.ShipmentStatusShipped:
		s.ShippedAt, s.ShippedByUserID = &at, &userID
	case models.ShipmentStatusReceived:
		s.ReceivedAt, s.ReceivedByUserID = &at, &userID
	case models.ShipmentStatusCancelled:
		s.CancelledAt, s.CancelledByUserID = &at, &userID
	}
	f.shipments[id] = s
	return 1, nil
}

func (f *fakeShipmentRepo) DeletePreparedShipment(_ repositories.SQLExecutor, id int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shipments[id]
	if !ok || s.Status != models.ShipmentStatusPrepared {
		return 0, nil
	}
	delete(f.shipments, id)
	return 1, nil
}

func (f *fakeShipmentRepo) FindShipmentByOrderIDs(fromOrgID, toOrgID int64, salesOrderID, purchaseOrderID *string) (*models.Shipment, error) {
	if salesOrderID == nil && purchaseOrderID == nil {
		return nil, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	var match *models.Shipment
	for _, s := range f.shipments {
		if s.FromOrgID != fromOrgID || s.ToOrgID != toOrgID {
			continue
		}
		if !sameOptional(s.SalesOrderID, salesOrderID) || !sameOptional(s.PurchaseOrderID, purchaseOrderID) {
			continue
		}
		if match == nil || s.ID > match.ID {
			c := s
			match = &c
		}
	}
	return match, nil
}

func sameOptional(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeShipmentRepo) GetShipmentByID(id int64) (*models.Shipment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.shipments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &s, nil
}

func (f *fakeShipmentRepo) GetShipmentsByOrganization(organizationID int64, filters models.ShipmentFilters) ([]models.Shipment, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Shipment{}
	for _, s := range f.shipments {
		switch filters.Direction {
		case models.ShipmentDirectionIncoming:
			if s.ToOrgID != organizationID {
				continue
			}
		case models.ShipmentDirectionOutgoing:
			if s.FromOrgID != organizationID {
				continue
			}
		default:
			if !s.Involves(organizationID) {
				continue
			}
		}
		if filters.Status != nil && *filters.Status != "" && string(s.Status) != *filters.Status {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (f *fakeShipmentRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.shipments)
}
