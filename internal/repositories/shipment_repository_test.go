package repositories

import (
	"database/sql/driver"
	"strings"
	"testing"
	"time"

	"hospitex_portal/internal/models"
)

func TestUpdateShipmentStatusPlaceholders(t *testing.T) {
	at := time.Date(2026, 5, 1, 8, 30, 0, 0, time.UTC)
	tests := []struct {
		to        models.ShipmentStatus
		wantWhere string
		wantCols  string
		wantFrom  []driver.Value
	}{
		{models.ShipmentStatusShipped, "status IN ($5)", "shipped_at = $2, shipped_by_user_id = $3", []driver.Value{"prepared"}},
		{models.ShipmentStatusReceived, "status IN ($5)", "received_at = $2, received_by_user_id = $3", []driver.Value{"shipped"}},
		{models.ShipmentStatusCancelled, "status IN ($5, $6)", "cancelled_at = $2, cancelled_by_user_id = $3", []driver.Value{"prepared", "shipped"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			rec := &recorder{affected: 1}
			db := newRecordingDB(t, rec)
			repo := NewShipmentRepository(db)

			n, err := repo.UpdateShipmentStatus(db, 12, tt.to, 4, at)
			if err != nil || n != 1 {
				t.Fatalf("expected 1 row, got %d (%v)", n, err)
			}
			stmt := rec.recorded()[0]
			if !strings.Contains(stmt.query, tt.wantWhere) || !strings.Contains(stmt.query, tt.wantCols) {
				t.Fatalf("unexpected statement: %s", stmt.query)
			}
			if len(stmt.args) != 4+len(tt.wantFrom) {
				t.Fatalf("expected %d args, got %v", 4+len(tt.wantFrom), stmt.args)
			}
			if stmt.args[0] != string(tt.to) || stmt.args[2] != int64(4) || stmt.args[3] != int64(12) {
				t.Fatalf("unexpected leading args %v", stmt.args[:4])
			}
			for i, want := range tt.wantFrom {
				if stmt.args[4+i] != want {
					t.Fatalf("expected from status %v at $%d, got %v", want, 5+i, stmt.args[4+i])
				}
			}
		})
	}
}

func TestUpdateShipmentStatusRejectsPrepared(t *testing.T) {
	rec := &recorder{}
	db := newRecordingDB(t, rec)

	if _, err := NewShipmentRepository(db).UpdateShipmentStatus(db, 1, models.ShipmentStatusPrepared, 1, time.Now()); err == nil {
		t.Fatalf("expected an error for a transition into prepared")
	}
	if len(rec.recorded()) != 0 {
		t.Fatalf("no statement should reach the database")
	}
}

func TestFindShipmentByOrderIDs(t *testing.T) {
	rec := &recorder{respond: func(string, []driver.Value) ([]string, [][]driver.Value) {
		return []string{"id"}, nil
	}}
	repo := NewShipmentRepository(newRecordingDB(t, rec))

	shipment, err := repo.FindShipmentByOrderIDs(1, 2, nil, nil)
	if err != nil || shipment != nil {
		t.Fatalf("expected nil, nil without order ids, got %v, %v", shipment, err)
	}
	if len(rec.recorded()) != 0 {
		t.Fatalf("lookup without order ids must not query, got %d statements", len(rec.recorded()))
	}

	so := "SO-77"
	shipment, err = repo.FindShipmentByOrderIDs(1, 2, &so, nil)
	if err != nil || shipment != nil {
		t.Fatalf("expected nil, nil when nothing matches, got %v, %v", shipment, err)
	}
	stmts := rec.recorded()
	if len(stmts) != 1 {
		t.Fatalf("expected one query, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0].query, "purchase_order_id IS NOT DISTINCT FROM $4") {
		t.Fatalf("NULL order id must match NULL: %s", stmts[0].query)
	}
	if stmts[0].args[2] != "SO-77" || stmts[0].args[3] != nil {
		t.Fatalf("unexpected order id args %v", stmts[0].args)
	}
}
