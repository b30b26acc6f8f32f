package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hospitex_portal/internal/metrics"
	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
	"hospitex_portal/pkg/utils"

	"github.com/go-playground/validator/v10"
)

// Import entities, used as metric labels.
const (
	importEntityShipment = "shipment"
	importEntityTemplate = "template"
)

// Canonical import columns.
const (
	colFromOrg         = "from_org"
	colToOrg           = "to_org"
	colFromUnit        = "from_unit"
	colToUnit          = "to_unit"
	colSalesOrderID    = "sales_order_id"
	colPurchaseOrderID = "purchase_order_id"
	colNotes           = "notes"
	colEventType       = "event_type"
	colLabel           = "label"
	colUnit            = "unit"
	colTargetUnit      = "target_unit"
	colReusable        = "reusable"
)

var shipmentColumnAliases = map[string][]string{
	colFromOrg:         {"from_org_id", "from organization", "from", "sender", "absender"},
	colToOrg:           {"to_org_id", "to organization", "to", "receiver", "recipient", "empfänger"},
	colFromUnit:        {"from_unit_id", "source unit"},
	colToUnit:          {"to_unit_id", "target unit"},
	colSalesOrderID:    {"sales order", "so", "sales order number", "auftrag", "auftragsnummer"},
	colPurchaseOrderID: {"purchase order", "po", "purchase order number", "bestellung", "bestellnummer"},
	colNotes:           {"note", "comment", "comments", "bemerkung"},
}

var templateColumnAliases = map[string][]string{
	colEventType:  {"event_type_id", "type", "event type code", "code", "ereignistyp"},
	colLabel:      {"name", "title", "bezeichnung"},
	colUnit:       {"unit_id", "from unit", "station"},
	colTargetUnit: {"target_unit_id", "to unit", "ziel"},
	colReusable:   {"is_reusable", "reusable flag", "wiederverwendbar"},
	colNotes:      {"note", "comment", "comments", "bemerkung"},
}

type shipmentImportRow struct {
	FromOrgID       int64   `validate:"required,gt=0"`
	ToOrgID         int64   `validate:"required,gt=0"`
	SalesOrderID    *string `validate:"omitempty,max=100"`
	PurchaseOrderID *string `validate:"omitempty,max=100"`
	Notes           *string `validate:"omitempty,max=2000"`
}

type templateImportRow struct {
	EventTypeID int64   `validate:"required,gt=0"`
	Label       string  `validate:"required,max=255"`
	Notes       *string `validate:"omitempty,max=2000"`
}

// ImportService materialises shipments and event templates from CSV or XLSX
// files. Rows are processed independently; a bad row is reported and the
// import continues.
type ImportService interface {
	ImportShipments(ctx context.Context, orgID, userID int64, filename string, r io.Reader) (*models.ImportResult, error)
	ImportTemplates(orgID, userID int64, filename string, r io.Reader) (*models.ImportResult, error)
}

type importService struct {
	shipments ShipmentService
	templates EventTemplateService
	registry  EventTypeRegistry
	orgRepo   repositories.OrganizationRepository
	validate  *validator.Validate
	maxRows   int
	metrics   *metrics.Metrics
}

// NewImportService creates a new instance of ImportService. maxRows <= 0
// disables the row limit.
func NewImportService(
	shipments ShipmentService,
	templates EventTemplateService,
	registry EventTypeRegistry,
	orgRepo repositories.OrganizationRepository,
	maxRows int,
	m *metrics.Metrics,
) ImportService {
	return &importService{
		shipments: shipments,
		templates: templates,
		registry:  registry,
		orgRepo:   orgRepo,
		validate:  validator.New(),
		maxRows:   maxRows,
		metrics:   m,
	}
}

// readRows reads the file and splits off the header, enforcing the row limit.
func (s *importService) readRows(filename string, r io.Reader) ([]string, [][]string, error) {
	rows, err := readSpreadsheet(filename, r)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, fmt.Errorf("%w: file is empty", ErrValidation)
	}
	data := rows[1:]
	if s.maxRows > 0 && len(data) > s.maxRows {
		return nil, nil, fmt.Errorf("%w: %d data rows exceed the limit of %d", ErrValidation, len(data), s.maxRows)
	}
	return rows[0], data, nil
}

// ImportShipments creates or updates shipments in which orgID is the sender
// or the receiver. A row matching an existing shipment by order ids updates
// it while it is prepared and is rejected otherwise.
func (s *importService) ImportShipments(ctx context.Context, orgID, userID int64, filename string, r io.Reader) (*models.ImportResult, error) {
	header, data, err := s.readRows(filename, r)
	if err != nil {
		return nil, err
	}
	cols := matchColumns(header, shipmentColumnAliases)
	if !cols.has(colFromOrg) && !cols.has(colToOrg) {
		return nil, fmt.Errorf("%w: a %s or %s column is required", ErrValidation, colFromOrg, colToOrg)
	}

	result := &models.ImportResult{TotalRows: len(data), Errors: []models.RowError{}}
	for i, row := range data {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		rowNum := i + 2
		if isBlankRow(row) {
			result.Skipped++
			s.metrics.ImportRow(importEntityShipment, "skipped")
			continue
		}
		outcome, err := s.importShipmentRow(ctx, orgID, userID, cols, row)
		if err != nil {
			result.AddError(rowNum, err.Error())
			s.metrics.ImportRow(importEntityShipment, "failed")
			continue
		}
		switch outcome {
		case "created":
			result.Created++
		case "updated":
			result.Updated++
		default:
			result.Skipped++
		}
		s.metrics.ImportRow(importEntityShipment, outcome)
	}

	utils.LogInfo("Shipment import finished", map[string]interface{}{
		"organization_id": orgID,
		"file":            filename,
		"rows":            result.TotalRows,
		"created":         result.Created,
		"updated":         result.Updated,
		"failed":          len(result.Errors),
	})
	return result, nil
}

func (s *importService) importShipmentRow(ctx context.Context, orgID, userID int64, cols columnIndex, row []string) (string, error) {
	fromCell, toCell := cols.value(row, colFromOrg), cols.value(row, colToOrg)
	if fromCell == "" && toCell == "" {
		return "", fmt.Errorf("sender or receiver organization is required")
	}

	fromOrgID, toOrgID := orgID, orgID
	if fromCell != "" {
		org, err := s.resolveOrganization(fromCell)
		if err != nil {
			return "", err
		}
		fromOrgID = org.ID
	}
	if toCell != "" {
		org, err := s.resolveOrganization(toCell)
		if err != nil {
			return "", err
		}
		toOrgID = org.ID
	}
	if fromOrgID != orgID && toOrgID != orgID {
		return "", fmt.Errorf("importing organization must be the sender or the receiver")
	}

	fromUnitID, err := s.resolveUnit(fromOrgID, cols.value(row, colFromUnit))
	if err != nil {
		return "", err
	}
	toUnitID, err := s.resolveUnit(toOrgID, cols.value(row, colToUnit))
	if err != nil {
		return "", err
	}

	rec := shipmentImportRow{
		FromOrgID:       fromOrgID,
		ToOrgID:         toOrgID,
		SalesOrderID:    utils.NewNullString(cols.value(row, colSalesOrderID)),
		PurchaseOrderID: utils.NewNullString(cols.value(row, colPurchaseOrderID)),
		Notes:           utils.NewNullString(cols.value(row, colNotes)),
	}
	if err := s.validate.Struct(rec); err != nil {
		return "", fmt.Errorf("invalid row: %s", utils.ValidationMessage(err))
	}

	existing, err := s.shipments.FindByOrderIDs(fromOrgID, toOrgID, rec.SalesOrderID, rec.PurchaseOrderID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		_, err := s.shipments.Create(ctx, fromOrgID, toOrgID, ShipmentOptions{
			FromUnitID:      fromUnitID,
			ToUnitID:        toUnitID,
			SalesOrderID:    rec.SalesOrderID,
			PurchaseOrderID: rec.PurchaseOrderID,
			Notes:           rec.Notes,
			CreatedByUserID: &userID,
		})
		if err != nil {
			return "", err
		}
		return "created", nil
	}

	if existing.Status != models.ShipmentStatusPrepared {
		return "", fmt.Errorf("shipment %s is already %s", existing.QRCode, existing.Status)
	}
	// the receiver may only touch the notes and its own unit
	senderSide := existing.FromOrgID == orgID
	fields := map[string]interface{}{}
	if rec.Notes != nil {
		fields["notes"] = *rec.Notes
	}
	if fromUnitID != nil && senderSide {
		fields["from_unit_id"] = *fromUnitID
	}
	if toUnitID != nil {
		fields["to_unit_id"] = *toUnitID
	}
	if len(fields) == 0 {
		return "skipped", nil
	}
	if _, err := s.shipments.Update(existing.ID, existing.FromOrgID, fields); err != nil {
		return "", err
	}
	return "updated", nil
}

// ImportTemplates creates event templates for orgID. A row whose label
// matches an existing template (case-insensitive) is skipped.
func (s *importService) ImportTemplates(orgID, userID int64, filename string, r io.Reader) (*models.ImportResult, error) {
	header, data, err := s.readRows(filename, r)
	if err != nil {
		return nil, err
	}
	cols := matchColumns(header, templateColumnAliases)
	for _, required := range []string{colEventType, colLabel} {
		if !cols.has(required) {
			return nil, fmt.Errorf("%w: column %s is required", ErrValidation, required)
		}
	}

	existing, _, err := s.templates.FindByOrganization(orgID, models.EventTemplateFilters{})
	if err != nil {
		return nil, err
	}
	labels := make(map[string]struct{}, len(existing))
	for _, tpl := range existing {
		labels[strings.ToLower(tpl.Label)] = struct{}{}
	}

	result := &models.ImportResult{TotalRows: len(data), Errors: []models.RowError{}}
	for i, row := range data {
		rowNum := i + 2
		if isBlankRow(row) {
			result.Skipped++
			s.metrics.ImportRow(importEntityTemplate, "skipped")
			continue
		}
		label := cols.value(row, colLabel)
		if _, dup := labels[strings.ToLower(label)]; dup && label != "" {
			result.Skipped++
			s.metrics.ImportRow(importEntityTemplate, "skipped")
			continue
		}
		if err := s.importTemplateRow(orgID, userID, cols, row); err != nil {
			result.AddError(rowNum, err.Error())
			s.metrics.ImportRow(importEntityTemplate, "failed")
			continue
		}
		labels[strings.ToLower(label)] = struct{}{}
		result.Created++
		s.metrics.ImportRow(importEntityTemplate, "created")
	}

	utils.LogInfo("Template import finished", map[string]interface{}{
		"organization_id": orgID,
		"file":            filename,
		"rows":            result.TotalRows,
		"created":         result.Created,
		"failed":          len(result.Errors),
	})
	return result, nil
}

func (s *importService) importTemplateRow(orgID, userID int64, cols columnIndex, row []string) error {
	eventType, err := s.resolveEventType(cols.value(row, colEventType))
	if err != nil {
		return err
	}
	rec := templateImportRow{
		EventTypeID: eventType.ID,
		Label:       cols.value(row, colLabel),
		Notes:       utils.NewNullString(cols.value(row, colNotes)),
	}
	if err := s.validate.Struct(rec); err != nil {
		return fmt.Errorf("invalid row: %s", utils.ValidationMessage(err))
	}

	unitID, err := s.resolveUnit(orgID, cols.value(row, colUnit))
	if err != nil {
		return err
	}
	targetUnitID, err := s.resolveUnit(orgID, cols.value(row, colTargetUnit))
	if err != nil {
		return err
	}
	reusable := true
	if cell := cols.value(row, colReusable); cell != "" {
		flag, ok := parseFlag(cell)
		if !ok {
			return fmt.Errorf("reusable: cannot read %q as yes/no", cell)
		}
		reusable = flag
	}

	_, err = s.templates.Create(orgID, rec.EventTypeID, rec.Label, EventTemplateOptions{
		UnitID:          unitID,
		TargetUnitID:    targetUnitID,
		IsReusable:      &reusable,
		Notes:           rec.Notes,
		CreatedByUserID: &userID,
	})
	return err
}

// resolveOrganization accepts a numeric id or a case-insensitive name.
func (s *importService) resolveOrganization(cell string) (*models.Organization, error) {
	var org *models.Organization
	var err error
	if id, convErr := strconv.ParseInt(cell, 10, 64); convErr == nil {
		org, err = s.orgRepo.GetOrganizationByID(id)
	} else {
		org, err = s.orgRepo.FindOrganizationByName(cell)
	}
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrOrganizationNotFound, cell)
		}
		return nil, err
	}
	return org, nil
}

// resolveUnit accepts an empty cell, a numeric id or a case-insensitive name
// of a unit belonging to orgID.
func (s *importService) resolveUnit(orgID int64, cell string) (*int64, error) {
	if cell == "" {
		return nil, nil
	}
	if id, convErr := strconv.ParseInt(cell, 10, 64); convErr == nil {
		if err := checkUnitOwnership(s.orgRepo, orgID, &id); err != nil {
			return nil, err
		}
		return &id, nil
	}
	unit, err := s.orgRepo.FindUnitByName(orgID, cell)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrUnitNotFound, cell)
		}
		return nil, err
	}
	return &unit.ID, nil
}

// resolveEventType accepts a numeric id, a code or a display name.
func (s *importService) resolveEventType(cell string) (*models.EventType, error) {
	if cell == "" {
		return nil, fmt.Errorf("%w: empty", ErrEventTypeNotFound)
	}
	if id, convErr := strconv.ParseInt(cell, 10, 64); convErr == nil {
		return s.registry.FindByID(id)
	}
	if et, err := s.registry.FindByCode(strings.ToLower(cell)); err == nil {
		return et, nil
	}
	types, err := s.registry.GetAll()
	if err != nil {
		return nil, err
	}
	for i := range types {
		if strings.EqualFold(types[i].Name, cell) || strings.EqualFold(utils.DerefString(types[i].NameEN, ""), cell) {
			return &types[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrEventTypeNotFound, cell)
}
