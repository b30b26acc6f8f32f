package services

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"hospitex_portal/internal/models"
	"hospitex_portal/pkg/utils"

	"github.com/xuri/excelize/v2"
)

type importFixture struct {
	svc       ImportService
	shipments *shipmentService
	shipRepo  *fakeShipmentRepo
	templates *fakeTemplateRepo
}

func newImportFixture(maxRows int) *importFixture {
	shipments, shipRepo := newShipmentServiceForTest()
	orgRepo := newFakeOrgRepo()
	registry := NewEventTypeRegistry(&fakeEventTypeRepo{types: seedEventTypes()})
	templateRepo := newFakeTemplateRepo()
	templates := NewEventTemplateService(templateRepo, orgRepo, registry, nil)
	return &importFixture{
		svc:       NewImportService(shipments, templates, registry, orgRepo, maxRows, nil),
		shipments: shipments,
		shipRepo:  shipRepo,
		templates: templateRepo,
	}
}

const duplicateRowsCSV = "Absender;Empfänger;Auftrag;Bemerkung\n" +
	"Klinikum Nord;2;SO-1;erste Lieferung\n" +
	"Klinikum Nord;2;SO-1;erste Lieferung\n"

func TestImportUpdatesPreparedShipmentInsteadOfDuplicating(t *testing.T) {
	f := newImportFixture(0)
	ctx := context.Background()
	existing, err := f.shipments.Create(ctx, 1, 2, ShipmentOptions{SalesOrderID: utils.NewNullString("SO-1")})
	if err != nil {
		t.Fatalf("seeding shipment failed: %v", err)
	}

	result, err := f.svc.ImportShipments(ctx, 1, 5, "lieferungen.csv", strings.NewReader(duplicateRowsCSV))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.TotalRows != 2 || result.Created != 0 || result.Updated != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.shipRepo.count() != 1 {
		t.Fatalf("expected no duplicate shipment, got %d", f.shipRepo.count())
	}
	got, _ := f.shipRepo.GetShipmentByID(existing.ID)
	if got.Notes == nil || *got.Notes != "erste Lieferung" {
		t.Fatalf("notes not updated: %v", got.Notes)
	}
}

func TestImportReportsErrorForShippedShipment(t *testing.T) {
	f := newImportFixture(0)
	ctx := context.Background()
	existing, _ := f.shipments.Create(ctx, 1, 2, ShipmentOptions{SalesOrderID: utils.NewNullString("SO-1")})
	if _, err := f.shipments.MarkAsShipped(existing.ID, 1, 5); err != nil {
		t.Fatalf("MarkAsShipped returned error: %v", err)
	}

	result, err := f.svc.ImportShipments(ctx, 1, 5, "lieferungen.csv", strings.NewReader(duplicateRowsCSV))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Updated != 0 || result.Created != 0 || len(result.Errors) != 2 {
		t.Fatalf("expected two error entries, got %+v", result)
	}
	if result.Errors[0].Row != 2 || !strings.Contains(result.Errors[0].Message, "shipped") {
		t.Fatalf("unexpected first error: %+v", result.Errors[0])
	}
	got, _ := f.shipRepo.GetShipmentByID(existing.ID)
	if got.Notes != nil {
		t.Fatalf("shipped shipment must not be updated")
	}
}

func TestImportByReceiverUpdatesNotesAndOwnUnit(t *testing.T) {
	f := newImportFixture(0)
	ctx := context.Background()
	senderUnit := int64(10)
	existing, err := f.shipments.Create(ctx, 1, 2, ShipmentOptions{SalesOrderID: utils.NewNullString("SO-1"), FromUnitID: &senderUnit})
	if err != nil {
		t.Fatalf("seeding shipment failed: %v", err)
	}

	csv := "sender,receiver,so,from unit,to unit,notes\n" +
		"1,2,SO-1,Station B,Annahme,Rampe 3\n"
	result, err := f.svc.ImportShipments(ctx, 2, 8, "eingang.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Updated != 1 || result.Created != 0 || len(result.Errors) != 0 {
		t.Fatalf("expected the receiver's row to update, got %+v", result)
	}
	got, _ := f.shipRepo.GetShipmentByID(existing.ID)
	if got.Notes == nil || *got.Notes != "Rampe 3" {
		t.Fatalf("notes not updated: %v", got.Notes)
	}
	if got.ToUnitID == nil || *got.ToUnitID != 20 {
		t.Fatalf("expected receiver unit 20, got %v", got.ToUnitID)
	}
	if got.FromUnitID == nil || *got.FromUnitID != senderUnit {
		t.Fatalf("receiver must not change the sender unit, got %v", got.FromUnitID)
	}
}

func TestImportCreatesFirstThenUpdates(t *testing.T) {
	f := newImportFixture(0)

	result, err := f.svc.ImportShipments(context.Background(), 1, 5, "lieferungen.csv", strings.NewReader(duplicateRowsCSV))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Created != 1 || result.Updated != 1 {
		t.Fatalf("expected one create and one update, got %+v", result)
	}
}

func TestImportRowsWithoutOrderIDsAlwaysCreate(t *testing.T) {
	f := newImportFixture(0)
	csv := "from_org_id,to_org_id,notes\n1,2,a\n1,2,a\n,,\n"

	result, err := f.svc.ImportShipments(context.Background(), 1, 5, "s.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Created != 2 || result.Skipped != 1 {
		t.Fatalf("expected two creates and one blank row, got %+v", result)
	}
}

func TestImportRowErrors(t *testing.T) {
	f := newImportFixture(0)
	csv := "sender,receiver,so,from unit\n" +
		"3,2,SO-9,\n" + // importing org is neither side
		"Unbekannt,2,SO-8,\n" +
		"1,2,SO-7,Annahme\n" + // unit of the receiver used as sender unit
		"1,2," + strings.Repeat("x", 101) + ",\n" +
		"1,2,SO-6,Station A\n"

	result, err := f.svc.ImportShipments(context.Background(), 1, 5, "s.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Created != 1 || len(result.Errors) != 4 {
		t.Fatalf("expected 1 created and 4 errors, got %+v", result)
	}
	for i, want := range []int{2, 3, 4, 5} {
		if result.Errors[i].Row != want {
			t.Fatalf("error %d: expected row %d, got %d", i, want, result.Errors[i].Row)
		}
	}
	if !strings.Contains(result.Errors[3].Message, "SalesOrderID") {
		t.Fatalf("expected a validation message, got %q", result.Errors[3].Message)
	}
}

func TestImportRejectsBadFiles(t *testing.T) {
	f := newImportFixture(1)
	ctx := context.Background()

	if _, err := f.svc.ImportShipments(ctx, 1, 5, "s.pdf", strings.NewReader("x")); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := f.svc.ImportShipments(ctx, 1, 5, "s.csv", strings.NewReader("notes\nx\n")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without organization columns, got %v", err)
	}
	if _, err := f.svc.ImportShipments(ctx, 1, 5, "s.csv", strings.NewReader(duplicateRowsCSV)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation over the row limit, got %v", err)
	}
	if _, err := f.svc.ImportShipments(ctx, 1, 5, "s.csv", strings.NewReader("")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation for an empty file, got %v", err)
	}
}

func TestImportShipmentsFromXLSX(t *testing.T) {
	f := newImportFixture(0)

	book := excelize.NewFile()
	rows := [][]interface{}{
		{"To Organization", "Sales Order", "Purchase Order"},
		{"Wäscherei Süd", "SO-100", "PO-100"},
		{"Pflegeheim West", "", "PO-200"},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		if err := book.SetSheetRow("Sheet1", cell, &r); err != nil {
			t.Fatalf("building workbook failed: %v", err)
		}
	}
	var buf bytes.Buffer
	if err := book.Write(&buf); err != nil {
		t.Fatalf("writing workbook failed: %v", err)
	}

	result, err := f.svc.ImportShipments(context.Background(), 1, 5, "Lieferungen.XLSX", &buf)
	if err != nil {
		t.Fatalf("ImportShipments returned error: %v", err)
	}
	if result.Created != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
	shipments, _, _ := f.shipments.FindByOrganization(1, models.ShipmentFilters{Direction: models.ShipmentDirectionOutgoing})
	if len(shipments) != 2 {
		t.Fatalf("expected 2 outgoing shipments, got %d", len(shipments))
	}
}

func TestImportTemplates(t *testing.T) {
	f := newImportFixture(0)
	if _, err := f.templates.CreateEventTemplate(nil, &models.EventTemplate{OrganizationID: 1, EventTypeID: 3, Label: "Wochenwäsche"}); err != nil {
		t.Fatalf("seeding template failed: %v", err)
	}
	csv := "Type,Name,Station,Reusable\n" +
		"wash,Tageswäsche,Station A,ja\n" +
		"Lieferung,Anlieferung,,nein\n" +
		"unknown,Irgendwas,,\n" +
		"wash,wochenwäsche,,\n"

	result, err := f.svc.ImportTemplates(1, 5, "vorlagen.csv", strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ImportTemplates returned error: %v", err)
	}
	if result.Created != 2 || result.Skipped != 1 || len(result.Errors) != 1 || result.Errors[0].Row != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}

	var daily, delivery *models.EventTemplate
	for id := range f.templates.templates {
		tpl := f.templates.templates[id]
		switch tpl.Label {
		case "Tageswäsche":
			daily = &tpl
		case "Anlieferung":
			delivery = &tpl
		}
	}
	if daily == nil || !daily.IsReusable || daily.UnitID == nil || *daily.UnitID != 10 {
		t.Fatalf("unexpected daily template: %+v", daily)
	}
	if delivery == nil || delivery.IsReusable || delivery.EventTypeID != 2 {
		t.Fatalf("unexpected delivery template: %+v", delivery)
	}

	if _, err := f.svc.ImportTemplates(1, 5, "v.csv", strings.NewReader("Name\nx\n")); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation without event type column, got %v", err)
	}
}

func TestNormalizeHeaderAndDelimiter(t *testing.T) {
	if got := normalizeHeader(" Sales Order-ID "); got != "salesorderid" {
		t.Fatalf("normalizeHeader = %q", got)
	}
	if got := sniffDelimiter([]byte("a;b;c\n1,5;2;3")); got != ';' {
		t.Fatalf("expected ';', got %q", got)
	}
	if got := sniffDelimiter([]byte("a,b\n")); got != ',' {
		t.Fatalf("expected ',', got %q", got)
	}
}
