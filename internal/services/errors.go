package services

import (
	"errors"

	"hospitex_portal/internal/repositories"
)

// --- Domain Service Errors ---
var (
	ErrValidation              = errors.New("validation failed")
	ErrForbidden               = errors.New("operation not permitted for this organization")
	ErrNoFieldsToUpdate        = repositories.ErrNoFieldsToUpdate
	ErrOrganizationNotFound    = errors.New("organization not found")
	ErrUnitNotFound            = errors.New("unit not found")
	ErrEventTypeNotFound       = errors.New("event type not found")
	ErrTemplateNotFound        = errors.New("event template not found")
	ErrEventNotFound           = errors.New("event not found")
	ErrEventNotPending         = errors.New("event has already occurred")
	ErrRFIDNotFound            = errors.New("rfid tag not found")
	ErrShipmentNotFound        = errors.New("shipment not found")
	ErrShipmentNotPrepared     = errors.New("shipment is no longer prepared")
	ErrInvalidStatusTransition = errors.New("invalid shipment status transition")
	ErrQRCodeUnavailable       = errors.New("could not allocate shipment QR code")
	ErrUnsupportedFormat       = errors.New("unsupported file format")
)
