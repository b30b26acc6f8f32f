package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"hospitex_portal/internal/blob"
	"hospitex_portal/internal/repositories"
	"hospitex_portal/internal/services"
	"hospitex_portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
)

// caller is the authenticated user a request acts for.
type caller struct {
	UserID         int64
	OrganizationID int64
	Role           string
}

// currentCaller reads the identity AuthMiddleware put into the context.
// It responds 401 and returns false when it is missing.
func currentCaller(c *gin.Context) (caller, bool) {
	userID, okUser := c.Get("userID")
	orgID, okOrg := c.Get("organizationID")
	if !okUser || !okOrg {
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User not authenticated.", "Missing identity in context"))
		return caller{}, false
	}
	uid, ok1 := userID.(int64)
	oid, ok2 := orgID.(int64)
	if !ok1 || !ok2 {
		utils.LogError(errors.New("identity has unexpected type"), "currentCaller: type assertion failed")
		utils.RespondWithError(c, utils.NewAPIError(http.StatusUnauthorized, utils.ErrCodeUnauthorized, "User ID format incorrect.", "Invalid identity format in context"))
		return caller{}, false
	}
	return caller{UserID: uid, OrganizationID: oid, Role: c.GetString("userRole")}, true
}

// parseIDParam parses a positive int64 path parameter, responding 400 on failure.
func parseIDParam(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		details := "must be a positive integer"
		if err != nil {
			details = err.Error()
		}
		utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid "+name+" format.", details))
		return 0, false
	}
	return id, true
}

// normalizePage clamps page and pageSize to usable values.
func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func respondBindError(c *gin.Context, err error, action string) {
	utils.LogError(err, action+": Failed to bind request")
	utils.RespondWithError(c, utils.NewAPIError(http.StatusBadRequest, utils.ErrCodeValidationFailed, "Invalid request payload: "+utils.ValidationMessage(err), err.Error()))
}

// respondServiceError maps a service error onto the matching HTTP status.
// Unknown errors become a 500 with fallback as message.
func respondServiceError(c *gin.Context, err error, action, fallback string) {
	status, code, message := http.StatusInternalServerError, utils.ErrCodeInternalServerError, fallback
	details := "Internal error"

	switch {
	case errors.Is(err, services.ErrValidation),
		errors.Is(err, services.ErrNoFieldsToUpdate),
		errors.Is(err, services.ErrUnsupportedFormat),
		errors.Is(err, services.ErrOrganizationNotFound),
		errors.Is(err, services.ErrUnitNotFound),
		errors.Is(err, services.ErrRoleNotFound):
		status, code, message = http.StatusBadRequest, utils.ErrCodeValidationFailed, "Validation failed."
	case errors.Is(err, services.ErrInvalidCredentials):
		status, code, message = http.StatusUnauthorized, utils.ErrCodeUnauthorized, "Invalid username or password."
	case errors.Is(err, services.ErrForbidden):
		status, code, message = http.StatusForbidden, utils.ErrCodeForbidden, "Not allowed for your organization."
	case errors.Is(err, services.ErrEventTypeNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "Event type not found."
	case errors.Is(err, services.ErrTemplateNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "Event template not found."
	case errors.Is(err, services.ErrEventNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "Event not found."
	case errors.Is(err, services.ErrRFIDNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "RFID tag not found."
	case errors.Is(err, services.ErrShipmentNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "Shipment not found."
	case errors.Is(err, services.ErrUserNotFound):
		status, code, message = http.StatusNotFound, utils.ErrCodeNotFound, "User not found."
	case errors.Is(err, services.ErrShipmentNotPrepared):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Shipment is no longer prepared."
	case errors.Is(err, services.ErrInvalidStatusTransition):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Status change not allowed from the current status."
	case errors.Is(err, services.ErrEventNotPending):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Event has already occurred."
	case errors.Is(err, services.ErrUsernameExists):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Username already exists."
	case errors.Is(err, services.ErrEmailExists):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Email already exists."
	case errors.Is(err, blob.ErrExists):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "An export was already archived this second."
	case errors.Is(err, repositories.ErrDuplicateKey):
		status, code, message = http.StatusConflict, utils.ErrCodeConflict, "Record already exists."
	case errors.Is(err, services.ErrQRCodeUnavailable):
		status, code, message = http.StatusServiceUnavailable, utils.ErrCodeServiceUnavailable, "Could not allocate a QR code, please retry."
	}

	if status >= http.StatusInternalServerError {
		utils.LogError(err, action)
	} else {
		utils.LogWarn(action, map[string]interface{}{"error": err.Error(), "status": status})
		details = err.Error()
	}
	utils.RespondWithError(c, utils.NewAPIError(status, code, message, details))
}
