package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocument_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    DocumentStatus
		to      DocumentStatus
		wantErr bool
	}{
		{name: "pending to verified", from: StatusPending, to: StatusVerified},
		{name: "pending to voided", from: StatusPending, to: StatusVoided},
		{name: "verified to pending", from: StatusVerified, to: StatusPending, wantErr: true},
		{name: "verified to voided", from: StatusVerified, to: StatusVoided, wantErr: true},
		{name: "voided to verified", from: StatusVoided, to: StatusVerified, wantErr: true},
		{name: "pending to pending", from: StatusPending, to: StatusPending, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := &Document{Status: tt.from}
			err := doc.Transition(tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				assert.Equal(t, tt.from, doc.Status)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, doc.Status)
		})
	}
}

func TestDocument_Tags(t *testing.T) {
	doc := &Document{}
	doc.SetTags([]string{"a", "", "b", "a"})
	assert.Equal(t, []string{"a", "b"}, doc.Tags)

	doc.AddTag("c")
	doc.AddTag("b")
	assert.Equal(t, []string{"a", "b", "c"}, doc.Tags)

	doc.RemoveTag("a")
	assert.False(t, doc.HasTag("a"))
	assert.Equal(t, []string{"b", "c"}, doc.Tags)
}

func TestParseEnums(t *testing.T) {
	dt, ok := ParseDocumentType("行程单")
	assert.True(t, ok)
	assert.Equal(t, DocumentItinerary, dt)

	dt, ok = ParseDocumentType("Receipt_Slip")
	assert.True(t, ok)
	assert.Equal(t, DocumentReceiptSlip, dt)

	dt, ok = ParseDocumentType("passport")
	assert.False(t, ok)
	assert.Equal(t, DocumentReceiptSlip, dt)

	uc, ok := ParseUserCategory("交通出行")
	assert.True(t, ok)
	assert.Equal(t, CategoryTransportation, uc)

	uc, ok = ParseUserCategory("EDUCATION_ENTERTAINMENT")
	assert.True(t, ok)
	assert.Equal(t, CategoryEducationEntertainment, uc)

	uc, ok = ParseUserCategory("")
	assert.False(t, ok)
	assert.Equal(t, CategoryOtherExpense, uc)
}
