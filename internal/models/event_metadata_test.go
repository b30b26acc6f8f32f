package models

import (
	"strings"
	"testing"
)

func TestMetadataKindFor(t *testing.T) {
	cases := []struct {
		code         string
		fromTemplate bool
		want         string
	}{
		{EventTypeDelivery, false, MetadataKindDelivery},
		{EventTypeWash, false, MetadataKindWash},
		{EventTypeInventory, false, MetadataKindInventory},
		{EventTypeRepetitive, false, MetadataKindRepetitive},
		{EventTypeRegistration, false, MetadataKindGeneric},
		{"something-new", false, MetadataKindGeneric},
		{EventTypeWash, true, MetadataKindRepetitive},
	}
	for _, tc := range cases {
		if got := MetadataKindFor(tc.code, tc.fromTemplate); got != tc.want {
			t.Fatalf("MetadataKindFor(%q, %v) = %q, want %q", tc.code, tc.fromTemplate, got, tc.want)
		}
	}
}

func TestDecodeEventMetadataDelivery(t *testing.T) {
	raw := []byte(`{"deliveryId":"D-7","supplier":"Wäscherei Süd","salesOrderId":"SO-1"}`)
	m, err := DecodeEventMetadata(MetadataKindDelivery, raw)
	if err != nil {
		t.Fatalf("DecodeEventMetadata returned error: %v", err)
	}
	d, ok := m.(DeliveryMetadata)
	if !ok {
		t.Fatalf("expected DeliveryMetadata, got %T", m)
	}
	if d.DeliveryID != "D-7" || d.Supplier != "Wäscherei Süd" || d.SalesOrderID != "SO-1" {
		t.Fatalf("unexpected delivery metadata: %+v", d)
	}
}

func TestDecodeEventMetadataEmptyInput(t *testing.T) {
	for _, raw := range [][]byte{nil, []byte(""), []byte("null"), []byte("  ")} {
		m, err := DecodeEventMetadata(MetadataKindWash, raw)
		if err != nil {
			t.Fatalf("DecodeEventMetadata(%q) returned error: %v", raw, err)
		}
		if _, ok := m.(WashMetadata); !ok {
			t.Fatalf("expected WashMetadata, got %T", m)
		}
	}
	m, err := DecodeEventMetadata("unknown", nil)
	if err != nil {
		t.Fatalf("DecodeEventMetadata returned error: %v", err)
	}
	g, ok := m.(GenericMetadata)
	if !ok || g == nil {
		t.Fatalf("expected non-nil GenericMetadata, got %#v", m)
	}
}

func TestDecodeEventMetadataInvalidJSON(t *testing.T) {
	if _, err := DecodeEventMetadata(MetadataKindInventory, []byte(`{"counted_items":"many"`)); err == nil {
		t.Fatalf("expected error for malformed metadata")
	}
}

func TestEncodeEventMetadataKeepsNonASCII(t *testing.T) {
	unitID := int64(4)
	out, err := EncodeEventMetadata(RepetitiveMetadata{Label: "Küche <Nord>", UnitID: &unitID, Notes: "über"})
	if err != nil {
		t.Fatalf("EncodeEventMetadata returned error: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "Küche <Nord>") || !strings.Contains(s, "über") {
		t.Fatalf("expected unescaped UTF-8 and HTML characters, got %s", s)
	}
	if strings.HasSuffix(s, "\n") {
		t.Fatalf("encoded metadata must not end with a newline: %q", s)
	}

	back, err := DecodeEventMetadata(MetadataKindRepetitive, out)
	if err != nil {
		t.Fatalf("DecodeEventMetadata returned error: %v", err)
	}
	r := back.(RepetitiveMetadata)
	if r.Label != "Küche <Nord>" || r.UnitID == nil || *r.UnitID != 4 {
		t.Fatalf("unexpected decoded metadata: %+v", r)
	}
}

func TestEncodeEventMetadataNil(t *testing.T) {
	out, err := EncodeEventMetadata(nil)
	if err != nil {
		t.Fatalf("EncodeEventMetadata returned error: %v", err)
	}
	if string(out) != "{}" {
		t.Fatalf("expected {}, got %s", out)
	}
}
