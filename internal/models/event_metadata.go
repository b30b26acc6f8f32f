package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Metadata kinds. A new event's kind follows its event type code, except that
// events created from a template always carry repetitive metadata. The kind is
// stored next to the JSON so decoding never depends on the template row.
const (
	MetadataKindDelivery   = "delivery"
	MetadataKindRepetitive = "repetitive"
	MetadataKindInventory  = "inventory"
	MetadataKindWash       = "wash"
	MetadataKindGeneric    = "generic"
)

// EventMetadata is the per-type payload of an Event.
type EventMetadata interface {
	Kind() string
}

// DeliveryMetadata is carried by delivery events.
type DeliveryMetadata struct {
	DeliveryID      string `json:"deliveryId,omitempty"`
	Supplier        string `json:"supplier,omitempty"`
	SalesOrderID    string `json:"salesOrderId,omitempty"`
	PurchaseOrderID string `json:"purchaseOrderId,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

func (DeliveryMetadata) Kind() string { return MetadataKindDelivery }

// RepetitiveMetadata is carried by repetitive events and by every event
// created from a template. Extra holds caller-supplied keys beyond the typed set.
type RepetitiveMetadata struct {
	Label  string         `json:"label,omitempty"`
	UnitID *int64         `json:"unit_id,omitempty"`
	Notes  string         `json:"notes,omitempty"`
	Extra  map[string]any `json:"extra,omitempty"`
}

func (RepetitiveMetadata) Kind() string { return MetadataKindRepetitive }

// InventoryMetadata is carried by inventory counts.
type InventoryMetadata struct {
	CountedItems int    `json:"counted_items,omitempty"`
	Location     string `json:"location,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

func (InventoryMetadata) Kind() string { return MetadataKindInventory }

// WashMetadata is carried by wash events.
type WashMetadata struct {
	Program     string `json:"program,omitempty"`
	Temperature *int   `json:"temperature,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

func (WashMetadata) Kind() string { return MetadataKindWash }

// GenericMetadata is the free-form payload of every other event type.
type GenericMetadata map[string]any

func (GenericMetadata) Kind() string { return MetadataKindGeneric }

// MetadataKindFor returns the metadata kind stored for an event of the given
// type code.
func MetadataKindFor(eventTypeCode string, fromTemplate bool) string {
	if fromTemplate {
		return MetadataKindRepetitive
	}
	switch eventTypeCode {
	case EventTypeDelivery:
		return MetadataKindDelivery
	case EventTypeRepetitive:
		return MetadataKindRepetitive
	case EventTypeInventory:
		return MetadataKindInventory
	case EventTypeWash:
		return MetadataKindWash
	default:
		return MetadataKindGeneric
	}
}

// DecodeEventMetadata decodes raw JSON into the variant for kind.
// Empty input decodes to the zero value of the variant.
func DecodeEventMetadata(kind string, raw []byte) (EventMetadata, error) {
	raw = bytes.TrimSpace(raw)
	empty := len(raw) == 0 || bytes.Equal(raw, []byte("null"))

	var target EventMetadata
	var err error
	switch kind {
	case MetadataKindDelivery:
		var m DeliveryMetadata
		if !empty {
			err = json.Unmarshal(raw, &m)
		}
		target = m
	case MetadataKindRepetitive:
		var m RepetitiveMetadata
		if !empty {
			err = json.Unmarshal(raw, &m)
		}
		target = m
	case MetadataKindInventory:
		var m InventoryMetadata
		if !empty {
			err = json.Unmarshal(raw, &m)
		}
		target = m
	case MetadataKindWash:
		var m WashMetadata
		if !empty {
			err = json.Unmarshal(raw, &m)
		}
		target = m
	default:
		m := GenericMetadata{}
		if !empty {
			err = json.Unmarshal(raw, &m)
		}
		target = m
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s metadata: %w", kind, err)
	}
	return target, nil
}

// EncodeEventMetadata encodes m as compact UTF-8 JSON without escaping
// non-ASCII or HTML characters. A nil value encodes as an empty object.
func EncodeEventMetadata(m EventMetadata) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encoding %s metadata: %w", m.Kind(), err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
