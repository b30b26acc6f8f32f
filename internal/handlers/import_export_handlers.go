package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"hospitex_portal/internal/models"
	"hospitex_portal/internal/services"
	"hospitex_portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

const importFormField = "file"

// ImportExportHandler serves spreadsheet imports, exports and archived exports.
type ImportExportHandler struct {
	importService services.ImportService
	exportService services.ExportService
	now           func() time.Time
}

// NewImportExportHandler creates a new ImportExportHandler.
func NewImportExportHandler(is services.ImportService, es services.ExportService) *ImportExportHandler {
	return &ImportExportHandler{importService: is, exportService: es, now: time.Now}
}

type importFunc func(c *gin.Context, who caller, filename string, file *bytes.Reader) (*models.ImportResult, error)

func (h *ImportExportHandler) runImport(c *gin.Context, action string, fn importFunc) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	header, err := c.FormFile(importFormField)
	if err != nil {
		utils.RespondValidationFailed(c, "multipart field \""+importFormField+"\" is required")
		return
	}
	f, err := header.Open()
	if err != nil {
		utils.LogError(err, action+": Failed to open uploaded file")
		utils.RespondInternalError(c, "Failed to read uploaded file.")
		return
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		utils.LogError(err, action+": Failed to read uploaded file")
		utils.RespondInternalError(c, "Failed to read uploaded file.")
		return
	}

	result, err := fn(c, who, header.Filename, bytes.NewReader(buf.Bytes()))
	if err != nil {
		respondServiceError(c, err, action+": Import failed", "Failed to import file.")
		return
	}
	if result.Errors == nil {
		result.Errors = []models.RowError{}
	}
	c.JSON(http.StatusOK, result)
}

// ImportShipments creates or updates shipments from an uploaded CSV/XLSX file.
func (h *ImportExportHandler) ImportShipments(c *gin.Context) {
	h.runImport(c, "ImportShipments", func(c *gin.Context, who caller, filename string, file *bytes.Reader) (*models.ImportResult, error) {
		return h.importService.ImportShipments(c.Request.Context(), who.OrganizationID, who.UserID, filename, file)
	})
}

// ImportEventTemplates creates templates from an uploaded CSV/XLSX file.
func (h *ImportExportHandler) ImportEventTemplates(c *gin.Context) {
	h.runImport(c, "ImportEventTemplates", func(_ *gin.Context, who caller, filename string, file *bytes.Reader) (*models.ImportResult, error) {
		return h.importService.ImportTemplates(who.OrganizationID, who.UserID, filename, file)
	})
}

// ExportShipments downloads the caller's shipments as CSV (default) or XLSX.
func (h *ImportExportHandler) ExportShipments(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}
	var filters models.ShipmentFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		respondBindError(c, err, "ExportShipments")
		return
	}
	format := strings.ToLower(c.DefaultQuery("format", services.FormatCSV))

	// rendered fully before the headers go out so a failure still gets a JSON error
	var buf bytes.Buffer
	if err := h.exportService.ExportShipments(who.OrganizationID, filters, format, &buf); err != nil {
		respondServiceError(c, err, "ExportShipments: Error from exportService.ExportShipments", "Failed to export shipments.")
		return
	}

	filename := fmt.Sprintf("shipments-%s.%s", h.now().Format("20060102"), format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, services.ContentTypeFor(format), buf.Bytes())
}

// ArchiveShipments stores an XLSX export of the caller's shipments in blob storage.
func (h *ImportExportHandler) ArchiveShipments(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}

	archive, err := h.exportService.ArchiveShipments(c.Request.Context(), who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "ArchiveShipments: Error from exportService.ArchiveShipments", "Failed to archive export.")
		return
	}
	c.JSON(http.StatusCreated, archive)
}

// GetExportArchives lists archived exports of the caller's organization, newest first.
func (h *ImportExportHandler) GetExportArchives(c *gin.Context) {
	who, ok := currentCaller(c)
	if !ok {
		return
	}

	archives, err := h.exportService.ListArchives(c.Request.Context(), who.OrganizationID)
	if err != nil {
		respondServiceError(c, err, "GetExportArchives: Error from exportService.ListArchives", "Failed to list exports.")
		return
	}
	if archives == nil {
		archives = []models.ExportArchive{}
	}
	c.JSON(http.StatusOK, gin.H{"data": archives, "total": len(archives)})
}
