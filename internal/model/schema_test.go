package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaFor(t *testing.T) {
	for _, dt := range DocumentTypes {
		t.Run(string(dt), func(t *testing.T) {
			schema, ok := SchemaFor(dt)
			require.True(t, ok)
			assert.Equal(t, dt, schema.Type())

			var decoded map[string]any
			require.NoError(t, json.Unmarshal([]byte(schema.JSON()), &decoded))
			assert.Equal(t, jsonSchemaDialect, decoded["$schema"])
			assert.Equal(t, "object", decoded["type"])
		})
	}

	_, ok := SchemaFor(DocumentType("passport"))
	assert.False(t, ok)
}

func TestSchemaDefinition_Itinerary(t *testing.T) {
	def := ItinerarySchema{}.Definition()
	props, ok := def["properties"].(map[string]any)
	require.True(t, ok)

	departure, ok := props["departure_datetime"].(map[string]any)
	require.True(t, ok)
	anyOf, ok := departure["anyOf"].([]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"type": "string", "format": "date-time"}, anyOf[0])
	assert.Equal(t, map[string]any{"type": "null"}, anyOf[1])

	assert.Equal(t, map[string]any{"type": "number"}, props["total_amount"])
	assert.NotContains(t, def, "$defs")
}

func TestSchemaDefinition_NestedTypes(t *testing.T) {
	def := InvoiceSchema{}.Definition()
	props := def["properties"].(map[string]any)
	items := props["items"].(map[string]any)
	assert.Equal(t, "array", items["type"])
	assert.Equal(t, map[string]any{"$ref": "#/$defs/InvoiceItem"}, items["items"])

	defs, ok := def["$defs"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, defs, "InvoiceItem")
	assert.NotContains(t, defs, "Invoice")

	receipt := ReceiptSchema{}.Definition()
	receiptDefs := receipt["$defs"].(map[string]any)
	assert.Contains(t, receiptDefs, "TransferInfo")
}
