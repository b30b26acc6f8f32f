package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hospitex_portal/internal/lock"
	"hospitex_portal/internal/metrics"
	"hospitex_portal/internal/models"
	"hospitex_portal/internal/repositories"
	"hospitex_portal/pkg/utils"
)

// maxQRCodeAttempts bounds the suffixes tried when a generated code collides.
const maxQRCodeAttempts = 5

// ShipmentOptions carries the optional columns of a new shipment.
type ShipmentOptions struct {
	FromUnitID      *int64
	ToUnitID        *int64
	SalesOrderID    *string
	PurchaseOrderID *string
	Notes           *string
	Metadata        json.RawMessage
	CreatedByUserID *int64
}

// CreateShipmentRequest DTO. The sender is always the caller's organization.
type CreateShipmentRequest struct {
	ToOrgID         int64           `json:"to_org_id" binding:"required"`
	FromUnitID      *int64          `json:"from_unit_id"`
	ToUnitID        *int64          `json:"to_unit_id"`
	SalesOrderID    *string         `json:"sales_order_id"`
	PurchaseOrderID *string         `json:"purchase_order_id"`
	Notes           *string         `json:"notes"`
	Metadata        json.RawMessage `json:"metadata"`
}

// Options converts the request into creation options attributed to userID.
func (r CreateShipmentRequest) Options(userID int64) ShipmentOptions {
	return ShipmentOptions{
		FromUnitID:      r.FromUnitID,
		ToUnitID:        r.ToUnitID,
		SalesOrderID:    r.SalesOrderID,
		PurchaseOrderID: r.PurchaseOrderID,
		Notes:           r.Notes,
		Metadata:        r.Metadata,
		CreatedByUserID: &userID,
	}
}

// ShipmentService drives the shipment lifecycle between two organizations:
// prepared -> shipped -> received, with cancellation from prepared or shipped.
type ShipmentService interface {
	GenerateQRCode(ctx context.Context) (string, error)
	Create(ctx context.Context, fromOrgID, toOrgID int64, opts ShipmentOptions) (*models.Shipment, error)
	Update(id, orgID int64, fields map[string]interface{}) (*models.Shipment, error)
	MarkAsShipped(id, orgID, userID int64) (*models.Shipment, error)
	MarkAsReceived(id, orgID, userID int64) (*models.Shipment, error)
	Cancel(id, orgID, userID int64) (*models.Shipment, error)
	Delete(id, orgID int64) error
	FindByOrderIDs(fromOrgID, toOrgID int64, salesOrderID, purchaseOrderID *string) (*models.Shipment, error)
	FindByID(id, orgID int64) (*models.Shipment, error)
	FindByOrganization(orgID int64, filters models.ShipmentFilters) ([]models.Shipment, int, error)
}

type shipmentService struct {
	shipmentRepo repositories.ShipmentRepository
	orgRepo      repositories.OrganizationRepository
	locker       lock.Locker
	db           *sql.DB
	metrics      *metrics.Metrics
	now          func() time.Time
}

// NewShipmentService creates a new instance of ShipmentService.
func NewShipmentService(
	shipmentRepo repositories.ShipmentRepository,
	orgRepo repositories.OrganizationRepository,
	locker lock.Locker,
	db *sql.DB,
	m *metrics.Metrics,
) ShipmentService {
	return &shipmentService{
		shipmentRepo: shipmentRepo,
		orgRepo:      orgRepo,
		locker:       locker,
		db:           db,
		metrics:      m,
		now:          time.Now,
	}
}

// maxQRCodeSequence is the last sequence that fits the five digit suffix.
const maxQRCodeSequence = 99999

// FormatQRCode renders the shipment code for the seq-th shipment of year.
// A year past maxQRCodeSequence shipments has no codes left.
func FormatQRCode(year, seq int) (string, error) {
	if seq < 1 || seq > maxQRCodeSequence {
		return "", fmt.Errorf("%w: sequence %d of year %d is out of range", ErrQRCodeUnavailable, seq, year)
	}
	return fmt.Sprintf("SH-%04d-%05d", year, seq), nil
}

func qrLockKey(year int) string {
	return fmt.Sprintf("shipment-qr:%d", year)
}

// GenerateQRCode returns the next code of the current year. It does not
// reserve the code; Create allocates codes under the per-year lock.
func (s *shipmentService) GenerateQRCode(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	year := s.now().Year()
	count, err := s.shipmentRepo.CountShipmentsCreatedInYear(s.db, year)
	if err != nil {
		return "", fmt.Errorf("failed to count shipments: %w", err)
	}
	return FormatQRCode(year, count+1)
}

// Create inserts a prepared shipment from fromOrgID to toOrgID with a fresh
// QR code.
func (s *shipmentService) Create(ctx context.Context, fromOrgID, toOrgID int64, opts ShipmentOptions) (*models.Shipment, error) {
	if fromOrgID <= 0 || toOrgID <= 0 {
		return nil, fmt.Errorf("%w: both organizations are required", ErrValidation)
	}
	if _, err := s.orgRepo.GetOrganizationByID(toOrgID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrOrganizationNotFound, toOrgID)
		}
		return nil, fmt.Errorf("failed to look up receiving organization: %w", err)
	}
	if err := checkUnitOwnership(s.orgRepo, fromOrgID, opts.FromUnitID); err != nil {
		return nil, err
	}
	if err := checkUnitOwnership(s.orgRepo, toOrgID, opts.ToUnitID); err != nil {
		return nil, err
	}
	if len(opts.Metadata) > 0 && !json.Valid(opts.Metadata) {
		return nil, fmt.Errorf("%w: metadata must be valid JSON", ErrValidation)
	}

	year := s.now().Year()
	l, err := s.locker.Obtain(ctx, qrLockKey(year))
	if err != nil {
		utils.LogError(err, "ShipmentService: QR code lock not obtained", map[string]interface{}{"year": year})
		return nil, fmt.Errorf("%w: %v", ErrQRCodeUnavailable, err)
	}
	defer func() {
		if relErr := l.Release(context.Background()); relErr != nil {
			utils.LogWarn("ShipmentService: releasing QR code lock failed", map[string]interface{}{"year": year, "error": relErr.Error()})
		}
	}()

	count, err := s.shipmentRepo.CountShipmentsCreatedInYear(s.db, year)
	if err != nil {
		return nil, fmt.Errorf("failed to count shipments: %w", err)
	}

	for attempt := 0; attempt < maxQRCodeAttempts; attempt++ {
		code, err := FormatQRCode(year, count+1+attempt)
		if err != nil {
			utils.LogError(err, "ShipmentService: QR code sequence exhausted", map[string]interface{}{"year": year})
			return nil, err
		}
		shipment := &models.Shipment{
			QRCode:          code,
			FromOrgID:       fromOrgID,
			ToOrgID:         toOrgID,
			FromUnitID:      opts.FromUnitID,
			ToUnitID:        opts.ToUnitID,
			SalesOrderID:    trimmedOrNil(opts.SalesOrderID),
			PurchaseOrderID: trimmedOrNil(opts.PurchaseOrderID),
			Notes:           trimmedOrNil(opts.Notes),
			Metadata:        opts.Metadata,
			CreatedByUserID: opts.CreatedByUserID,
		}
		created, err := s.shipmentRepo.CreateShipment(s.db, shipment)
		if err == nil {
			utils.LogInfo("Shipment created", map[string]interface{}{
				"shipment_id": created.ID,
				"qr_code":     created.QRCode,
				"from_org_id": fromOrgID,
				"to_org_id":   toOrgID,
			})
			return created, nil
		}
		if !errors.Is(err, repositories.ErrDuplicateKey) {
			return nil, fmt.Errorf("failed to create shipment: %w", err)
		}
		utils.LogWarn("ShipmentService: QR code taken, trying next suffix", map[string]interface{}{"qr_code": shipment.QRCode})
	}
	return nil, fmt.Errorf("%w: %d codes in use after sequence %d of year %d", ErrQRCodeUnavailable, maxQRCodeAttempts, count, year)
}

// Update edits a prepared shipment of the sending organization.
func (s *shipmentService) Update(id, orgID int64, fields map[string]interface{}) (*models.Shipment, error) {
	shipment, err := s.FindByID(id, orgID)
	if err != nil {
		return nil, err
	}
	if shipment.FromOrgID != orgID {
		return nil, ErrForbidden
	}
	if shipment.Status != models.ShipmentStatusPrepared {
		return nil, ErrShipmentNotPrepared
	}

	updates, err := s.normalizeShipmentFields(shipment, repositories.FilterAllowedFields(fields, repositories.ShipmentUpdatableFields))
	if err != nil {
		return nil, err
	}
	n, err := s.shipmentRepo.UpdatePreparedShipment(s.db, id, updates)
	if err != nil {
		if errors.Is(err, repositories.ErrNoFieldsToUpdate) {
			return nil, ErrNoFieldsToUpdate
		}
		return nil, fmt.Errorf("failed to update shipment: %w", err)
	}
	if n == 0 {
		return nil, ErrShipmentNotPrepared
	}
	return s.getShipment(id)
}

func (s *shipmentService) normalizeShipmentFields(shipment *models.Shipment, fields map[string]interface{}) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		switch key {
		case "sales_order_id", "purchase_order_id", "notes":
			if value == nil {
				out[key] = nil
				continue
			}
			str, ok := value.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a string or null", ErrValidation, key)
			}
			out[key] = trimmedOrNil(&str)
		case "from_unit_id", "to_unit_id":
			if value == nil {
				out[key] = nil
				continue
			}
			unitID, ok := toInt64(value)
			if !ok {
				return nil, fmt.Errorf("%w: %s must be a number or null", ErrValidation, key)
			}
			owner := shipment.FromOrgID
			if key == "to_unit_id" {
				owner = shipment.ToOrgID
			}
			if err := checkUnitOwnership(s.orgRepo, owner, &unitID); err != nil {
				return nil, err
			}
			out[key] = unitID
		case "metadata":
			if value == nil {
				out[key] = nil
				continue
			}
			raw, err := json.Marshal(value)
			if err != nil {
				return nil, fmt.Errorf("%w: metadata: %v", ErrValidation, err)
			}
			out[key] = string(raw)
		}
	}
	return out, nil
}

// MarkAsShipped is performed by the sending organization.
func (s *shipmentService) MarkAsShipped(id, orgID, userID int64) (*models.Shipment, error) {
	return s.transition(id, orgID, userID, models.ShipmentStatusShipped)
}

// MarkAsReceived is performed by the receiving organization.
func (s *shipmentService) MarkAsReceived(id, orgID, userID int64) (*models.Shipment, error) {
	return s.transition(id, orgID, userID, models.ShipmentStatusReceived)
}

// Cancel is performed by the sending organization.
func (s *shipmentService) Cancel(id, orgID, userID int64) (*models.Shipment, error) {
	return s.transition(id, orgID, userID, models.ShipmentStatusCancelled)
}

func (s *shipmentService) transition(id, orgID, userID int64, to models.ShipmentStatus) (*models.Shipment, error) {
	shipment, err := s.FindByID(id, orgID)
	if err != nil {
		return nil, err
	}
	actor := shipment.FromOrgID
	if to == models.ShipmentStatusReceived {
		actor = shipment.ToOrgID
	}
	if orgID != actor {
		return nil, ErrForbidden
	}
	if !models.CanTransition(shipment.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, shipment.Status, to)
	}

	n, err := s.shipmentRepo.UpdateShipmentStatus(s.db, id, to, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to update shipment status: %w", err)
	}
	if n == 0 {
		// another request moved the shipment first
		return nil, fmt.Errorf("%w: shipment %d left %s concurrently", ErrInvalidStatusTransition, id, shipment.Status)
	}

	s.metrics.ShipmentTransition(string(to))
	utils.LogInfo("Shipment status changed", map[string]interface{}{
		"shipment_id": id,
		"from":        string(shipment.Status),
		"to":          string(to),
		"user_id":     userID,
	})
	return s.getShipment(id)
}

// Delete removes a prepared shipment of the sending organization.
func (s *shipmentService) Delete(id, orgID int64) error {
	shipment, err := s.FindByID(id, orgID)
	if err != nil {
		return err
	}
	if shipment.FromOrgID != orgID {
		return ErrForbidden
	}
	n, err := s.shipmentRepo.DeletePreparedShipment(s.db, id)
	if err != nil {
		return fmt.Errorf("failed to delete shipment: %w", err)
	}
	if n == 0 {
		return ErrShipmentNotPrepared
	}
	return nil
}

// FindByOrderIDs returns nil, nil when both order ids are nil or nothing matches.
func (s *shipmentService) FindByOrderIDs(fromOrgID, toOrgID int64, salesOrderID, purchaseOrderID *string) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.FindShipmentByOrderIDs(fromOrgID, toOrgID, trimmedOrNil(salesOrderID), trimmedOrNil(purchaseOrderID))
	if err != nil {
		return nil, fmt.Errorf("failed to find shipment by order IDs: %w", err)
	}
	return shipment, nil
}

// FindByID returns the shipment when orgID is its sender or receiver.
func (s *shipmentService) FindByID(id, orgID int64) (*models.Shipment, error) {
	shipment, err := s.getShipment(id)
	if err != nil {
		return nil, err
	}
	if !shipment.Involves(orgID) {
		return nil, ErrForbidden
	}
	return shipment, nil
}

func (s *shipmentService) getShipment(id int64) (*models.Shipment, error) {
	shipment, err := s.shipmentRepo.GetShipmentByID(id)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrShipmentNotFound
		}
		return nil, fmt.Errorf("failed to get shipment: %w", err)
	}
	return shipment, nil
}

func (s *shipmentService) FindByOrganization(orgID int64, filters models.ShipmentFilters) ([]models.Shipment, int, error) {
	switch filters.Direction {
	case "", models.ShipmentDirectionAll, models.ShipmentDirectionIncoming, models.ShipmentDirectionOutgoing:
	default:
		return nil, 0, fmt.Errorf("%w: unknown direction %q", ErrValidation, filters.Direction)
	}
	if filters.Status != nil && *filters.Status != "" && !models.IsValidShipmentStatus(*filters.Status) {
		return nil, 0, fmt.Errorf("%w: unknown status %q", ErrValidation, *filters.Status)
	}
	shipments, total, err := s.shipmentRepo.GetShipmentsByOrganization(orgID, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list shipments: %w", err)
	}
	return shipments, total, nil
}
