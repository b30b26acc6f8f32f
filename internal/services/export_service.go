package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"hospitex_portal/internal/blob"
	"hospitex_portal/internal/models"
	"hospitex_portal/pkg/utils"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheetName  = "Shipments"
	exportTimeLayout = "2006-01-02 15:04:05"
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// shipmentExportHeader doubles as a valid import header.
var shipmentExportHeader = []string{
	"qr_code", "status", "from_org_id", "to_org_id", "from_unit_id", "to_unit_id",
	"sales_order_id", "purchase_order_id", "notes",
	"created_at", "shipped_at", "received_at", "cancelled_at",
}

// ExportService writes an organization's shipments as CSV or XLSX and keeps
// archived exports in blob storage.
type ExportService interface {
	ExportShipments(orgID int64, filters models.ShipmentFilters, format string, w io.Writer) error
	ArchiveShipments(ctx context.Context, orgID int64) (*models.ExportArchive, error)
	ListArchives(ctx context.Context, orgID int64) ([]models.ExportArchive, error)
}

type exportService struct {
	shipments ShipmentService
	store     blob.Store
	now       func() time.Time
}

// NewExportService creates a new instance of ExportService.
func NewExportService(shipments ShipmentService, store blob.Store) ExportService {
	return &exportService{shipments: shipments, store: store, now: time.Now}
}

// ContentTypeFor returns the MIME type of an export format.
func ContentTypeFor(format string) string {
	if format == FormatXLSX {
		return xlsxContentType
	}
	return "text/csv; charset=utf-8"
}

func (s *exportService) ExportShipments(orgID int64, filters models.ShipmentFilters, format string, w io.Writer) error {
	if format != FormatCSV && format != FormatXLSX {
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	// exports are never paged
	filters.Page, filters.PageSize = 0, 0
	shipments, _, err := s.shipments.FindByOrganization(orgID, filters)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(shipments)+1)
	rows = append(rows, shipmentExportHeader)
	for i := range shipments {
		rows = append(rows, shipmentExportRow(&shipments[i]))
	}
	if format == FormatXLSX {
		return writeXLSX(rows, w)
	}
	return writeCSV(rows, w)
}

func shipmentExportRow(s *models.Shipment) []string {
	return []string{
		s.QRCode,
		string(s.Status),
		strconv.FormatInt(s.FromOrgID, 10),
		strconv.FormatInt(s.ToOrgID, 10),
		formatOptionalID(s.FromUnitID),
		formatOptionalID(s.ToUnitID),
		utils.DerefString(s.SalesOrderID, ""),
		utils.DerefString(s.PurchaseOrderID, ""),
		utils.DerefString(s.Notes, ""),
		s.CreatedAt.Format(exportTimeLayout),
		formatOptionalTime(s.ShippedAt),
		formatOptionalTime(s.ReceivedAt),
		formatOptionalTime(s.CancelledAt),
	}
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(exportTimeLayout)
}

func writeCSV(rows [][]string, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing CSV export: %w", err)
	}
	return nil
}

func writeXLSX(rows [][]string, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheetName); err != nil {
		return fmt.Errorf("naming export sheet: %w", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(exportSheetName, cell, &values); err != nil {
			return fmt.Errorf("writing export row %d: %w", i+1, err)
		}
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing XLSX export: %w", err)
	}
	return nil
}

func archivePrefix(orgID int64) string {
	return fmt.Sprintf("exports/%d/", orgID)
}

// ArchiveShipments stores a full XLSX export of orgID's shipments under
// exports/{org}/{yyyy}/{timestamp}-shipments.xlsx.
func (s *exportService) ArchiveShipments(ctx context.Context, orgID int64) (*models.ExportArchive, error) {
	var buf bytes.Buffer
	if err := s.ExportShipments(orgID, models.ShipmentFilters{}, FormatXLSX, &buf); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := fmt.Sprintf("%s%04d/%s-shipments.xlsx", archivePrefix(orgID), now.Year(), now.Format("20060102T150405"))
	info, err := s.store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: xlsxContentType,
		Metadata:    map[string]string{"organization_id": strconv.FormatInt(orgID, 10)},
	})
	if err != nil {
		utils.LogError(err, "ExportService: storing export archive failed", map[string]interface{}{"key": key})
		return nil, fmt.Errorf("failed to store export archive: %w", err)
	}
	utils.LogInfo("Export archive stored", map[string]interface{}{
		"key":    info.Key,
		"size":   info.Size,
		"driver": string(s.store.Driver()),
	})
	return &models.ExportArchive{Key: info.Key, Size: info.Size, CreatedAt: info.LastModified}, nil
}

// ListArchives returns orgID's archived exports, newest first.
func (s *exportService) ListArchives(ctx context.Context, orgID int64) ([]models.ExportArchive, error) {
	infos, err := s.store.List(ctx, archivePrefix(orgID))
	if err != nil {
		return nil, fmt.Errorf("failed to list export archives: %w", err)
	}
	archives := make([]models.ExportArchive, 0, len(infos))
	for _, info := range infos {
		archives = append(archives, models.ExportArchive{Key: info.Key, Size: info.Size, CreatedAt: info.LastModified})
	}
	sort.Slice(archives, func(i, j int) bool { return archives[i].Key > archives[j].Key })
	return archives, nil
}
