package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/model"
)

func TestNormalizeAmount(t *testing.T) {
	tests := []struct {
		input any
		want  *float64
		name  string
	}{
		{name: "float", input: 12.5, want: ptr(12.5)},
		{name: "int", input: 30, want: ptr(30)},
		{name: "yuan sign", input: "￥1,234.50", want: ptr(1234.5)},
		{name: "half-width yuan sign", input: "¥88", want: ptr(88)},
		{name: "trailing unit", input: "45.00元", want: ptr(45)},
		{name: "negative", input: "-3.2", want: ptr(-3.2)},
		{name: "blank", input: "  ", want: nil},
		{name: "no digits", input: "未知", want: nil},
		{name: "nil", input: nil, want: nil},
		{name: "bool", input: true, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeAmount(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.InDelta(t, *tt.want, *got, 1e-9)
		})
	}
}

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		input any
		want  *string
		name  string
	}{
		{name: "iso date", input: "2025-04-09", want: sptr("2025/04/09")},
		{name: "slash date", input: "2025/04/09", want: sptr("2025/04/09")},
		{name: "compact", input: "20250409", want: sptr("2025/04/09")},
		{name: "datetime", input: "2025/04/09 08:30:00", want: sptr("2025/04/09")},
		{name: "iso datetime", input: "2025-04-09T08:30:00", want: sptr("2025/04/09")},
		{name: "chinese", input: "2025年4月9日", want: sptr("2025/04/09")},
		{name: "embedded", input: "开票日期：2025-4-9 上午", want: sptr("2025/04/09")},
		{name: "time value", input: time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), want: sptr("2024/12/31")},
		{name: "nil time pointer", input: (*time.Time)(nil), want: nil},
		{name: "garbage", input: "昨天", want: nil},
		{name: "blank", input: "", want: nil},
		{name: "number", input: 20250409.0, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeDate(tt.input)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func TestExtractAmount(t *testing.T) {
	t.Run("first usable key wins", func(t *testing.T) {
		got := ExtractAmount(map[string]any{
			"total_amount":               "",
			"total_amount_including_tax": "￥106.00",
			"amount_in_digits":           100.0,
		})
		require.NotNil(t, got)
		assert.InDelta(t, 106.0, *got, 1e-9)
	})

	t.Run("missing", func(t *testing.T) {
		assert.Nil(t, ExtractAmount(map[string]any{"merchant_name": "便利店"}))
		assert.Nil(t, ExtractAmount(nil))
	})
}

func TestExtractIssuedDate(t *testing.T) {
	fields := map[string]any{
		"issue_date":         "2025-01-02",
		"departure_datetime": "2025/04/09 08:30",
		"transaction_date":   "2025-03-03",
	}

	tests := []struct {
		want    *string
		docType model.DocumentType
	}{
		{docType: model.DocumentInvoice, want: sptr("2025/01/02")},
		{docType: model.DocumentItinerary, want: sptr("2025/04/09")},
		{docType: model.DocumentReceiptSlip, want: sptr("2025/03/03")},
		{docType: model.DocumentReceipt, want: sptr("2025/01/02")},
		{docType: model.DocumentType("未知"), want: nil},
	}

	for _, tt := range tests {
		t.Run(string(tt.docType), func(t *testing.T) {
			got := ExtractIssuedDate(tt.docType, fields)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func ptr(f float64) *float64 { return &f }

func sptr(s string) *string { return &s }
