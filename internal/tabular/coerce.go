package tabular

import (
	"strconv"
	"strings"

	"meddatachat/internal/models"
)

// naTokens are cell texts read as missing values, matching common
// spreadsheet exports.
var naTokens = map[string]struct{}{
	"NA": {}, "N/A": {}, "n/a": {}, "#N/A": {}, "NaN": {}, "nan": {}, "-NaN": {},
	"-nan": {}, "NULL": {}, "null": {}, "None": {}, "<NA>": {},
}

// Coerce converts raw cell text into a null, integer, float, or string value.
func Coerce(raw string) models.Value {
	s := strings.TrimSpace(raw)
	if s == "" {
		return models.Null()
	}
	if _, ok := naTokens[s]; ok {
		return models.Null()
	}
	if !strings.ContainsAny(s, "0123456789") {
		return models.StringValue(raw)
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return models.IntValue(i)
	}
	if looksDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return models.FloatValue(f)
		}
	}
	return models.StringValue(raw)
}

// looksDecimal rejects forms ParseFloat accepts but spreadsheets never mean as
// numbers (hex floats, underscores).
func looksDecimal(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.', r == '-', r == '+', r == 'e', r == 'E':
		default:
			return false
		}
	}
	return true
}
