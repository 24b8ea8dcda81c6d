package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Veraticus/receipt-flow/internal/model"
)

// AmountKeys are the structured fields searched for the document amount, in priority order.
var AmountKeys = []string{
	"total_amount",
	"total_amount_including_tax",
	"total_amount_excluding_tax",
	"amount_in_digits",
}

var dateKeys = map[model.DocumentType][]string{
	model.DocumentInvoice:     {"issue_date"},
	model.DocumentItinerary:   {"departure_datetime", "departure_date"},
	model.DocumentReceiptSlip: {"transaction_datetime", "transaction_date"},
	model.DocumentReceipt:     {"issue_date"},
}

// DateKeys returns the structured fields searched for the issue date of t, in priority order.
func DateKeys(t model.DocumentType) []string {
	return dateKeys[t]
}

var (
	amountPattern = regexp.MustCompile(`[-+]?\d+(?:\.\d+)?`)
	datePattern   = regexp.MustCompile(`(20\d{2})[-/年]?(\d{1,2})[-/月]?(\d{1,2})`)
)

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"20060102",
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02 15:04",
	"2006/01/02 15:04",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006/01/02T15:04:05",
	"2006/01/02T15:04:05.999999999",
}

// NormalizeAmount converts a model-provided amount to a float.
// Strings lose the yuan sign and thousands separators before the first signed
// decimal is taken. Anything else yields nil.
func NormalizeAmount(v any) *float64 {
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		cleaned := strings.NewReplacer("￥", "", "¥", "", ",", "").Replace(n)
		cleaned = strings.TrimSpace(cleaned)
		if cleaned == "" {
			return nil
		}
		match := amountPattern.FindString(cleaned)
		if match == "" {
			return nil
		}
		f, err := strconv.ParseFloat(match, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// NormalizeDate canonicalizes a model-provided date to YYYY/MM/DD, dropping
// any time of day. Unrecognized input yields nil.
func NormalizeDate(v any) *string {
	switch d := v.(type) {
	case time.Time:
		s := d.Format("2006/01/02")
		return &s
	case *time.Time:
		if d == nil {
			return nil
		}
		return NormalizeDate(*d)
	case string:
		cleaned := strings.TrimSpace(d)
		if cleaned == "" {
			return nil
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, cleaned); err == nil {
				s := t.Format("2006/01/02")
				return &s
			}
		}
		m := datePattern.FindStringSubmatch(cleaned)
		if m == nil {
			return nil
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		s := fmt.Sprintf("%04d/%02d/%02d", year, month, day)
		return &s
	default:
		return nil
	}
}

// ExtractAmount returns the first normalizable amount among AmountKeys.
func ExtractAmount(fields map[string]any) *float64 {
	for _, key := range AmountKeys {
		if amount := NormalizeAmount(fields[key]); amount != nil {
			return amount
		}
	}
	return nil
}

// ExtractIssuedDate returns the first normalizable date among DateKeys(t).
func ExtractIssuedDate(t model.DocumentType, fields map[string]any) *string {
	for _, key := range DateKeys(t) {
		if date := NormalizeDate(fields[key]); date != nil {
			return date
		}
	}
	return nil
}
