package model

import (
	"encoding/json"
	"reflect"
	"strings"
	"sync"
	"time"
)

const jsonSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// Schema is the structuring contract for one professional category.
// The set of implementations is closed: InvoiceSchema, ItinerarySchema,
// ReceiptSlipSchema and ReceiptSchema.
type Schema interface {
	Type() DocumentType
	Definition() map[string]any
	JSON() string
	sealed()
}

// InvoiceSchema describes Invoice.
type InvoiceSchema struct{}

// ItinerarySchema describes Itinerary.
type ItinerarySchema struct{}

// ReceiptSlipSchema describes ReceiptSlip.
type ReceiptSlipSchema struct{}

// ReceiptSchema describes Receipt.
type ReceiptSchema struct{}

var (
	invoiceDefinition     = sync.OnceValue(func() map[string]any { return buildSchema(reflect.TypeFor[Invoice]()) })
	itineraryDefinition   = sync.OnceValue(func() map[string]any { return buildSchema(reflect.TypeFor[Itinerary]()) })
	receiptSlipDefinition = sync.OnceValue(func() map[string]any { return buildSchema(reflect.TypeFor[ReceiptSlip]()) })
	receiptDefinition     = sync.OnceValue(func() map[string]any { return buildSchema(reflect.TypeFor[Receipt]()) })
)

func (InvoiceSchema) Type() DocumentType         { return DocumentInvoice }
func (InvoiceSchema) Definition() map[string]any { return invoiceDefinition() }
func (s InvoiceSchema) JSON() string             { return renderSchema(s) }
func (InvoiceSchema) sealed()                    {}

func (ItinerarySchema) Type() DocumentType         { return DocumentItinerary }
func (ItinerarySchema) Definition() map[string]any { return itineraryDefinition() }
func (s ItinerarySchema) JSON() string             { return renderSchema(s) }
func (ItinerarySchema) sealed()                    {}

func (ReceiptSlipSchema) Type() DocumentType         { return DocumentReceiptSlip }
func (ReceiptSlipSchema) Definition() map[string]any { return receiptSlipDefinition() }
func (s ReceiptSlipSchema) JSON() string             { return renderSchema(s) }
func (ReceiptSlipSchema) sealed()                    {}

func (ReceiptSchema) Type() DocumentType         { return DocumentReceipt }
func (ReceiptSchema) Definition() map[string]any { return receiptDefinition() }
func (s ReceiptSchema) JSON() string             { return renderSchema(s) }
func (ReceiptSchema) sealed()                    {}

// SchemaFor returns the structuring schema for a document type.
func SchemaFor(t DocumentType) (Schema, bool) {
	switch t {
	case DocumentInvoice:
		return InvoiceSchema{}, true
	case DocumentItinerary:
		return ItinerarySchema{}, true
	case DocumentReceiptSlip:
		return ReceiptSlipSchema{}, true
	case DocumentReceipt:
		return ReceiptSchema{}, true
	default:
		return nil, false
	}
}

func renderSchema(s Schema) string {
	data, err := json.MarshalIndent(s.Definition(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

var timeType = reflect.TypeFor[time.Time]()

// buildSchema derives a JSON Schema object for a struct type.
// Nested structs are emitted once under $defs and referenced.
func buildSchema(root reflect.Type) map[string]any {
	defs := make(map[string]any)
	rootSchema := objectSchema(root, defs)
	delete(defs, root.Name())

	rootSchema["$schema"] = jsonSchemaDialect
	if len(defs) > 0 {
		rootSchema["$defs"] = defs
	}
	return rootSchema
}

func objectSchema(t reflect.Type, defs map[string]any) map[string]any {
	schema := map[string]any{
		"type":                 "object",
		"title":                t.Name(),
		"additionalProperties": false,
	}
	defs[t.Name()] = schema

	props := make(map[string]any, t.NumField())
	for i := range t.NumField() {
		field := t.Field(i)
		name := strings.Split(field.Tag.Get("json"), ",")[0]
		if name == "" || name == "-" {
			continue
		}
		props[name] = typeSchema(field.Type, defs)
	}
	schema["properties"] = props
	return schema
}

func typeSchema(t reflect.Type, defs map[string]any) map[string]any {
	switch {
	case t == timeType:
		return map[string]any{"type": "string", "format": "date-time"}
	case t.Kind() == reflect.Pointer:
		return map[string]any{"anyOf": []any{typeSchema(t.Elem(), defs), map[string]any{"type": "null"}}}
	case t.Kind() == reflect.Slice:
		return map[string]any{"type": "array", "items": typeSchema(t.Elem(), defs)}
	case t.Kind() == reflect.Struct:
		if _, seen := defs[t.Name()]; !seen {
			objectSchema(t, defs)
		}
		return map[string]any{"$ref": "#/$defs/" + t.Name()}
	}

	switch t.Kind() {
	case reflect.Bool:
		return map[string]any{"type": "boolean"}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return map[string]any{"type": "integer"}
	case reflect.Float32, reflect.Float64:
		return map[string]any{"type": "number"}
	default:
		return map[string]any{"type": "string"}
	}
}
