package peripheral

import (
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"suitcase-link/internal/domain"
)

// DecodePayload parses a notification payload: UTF-8 decimal text with
// optional surrounding whitespace.
func DecodePayload(b []byte) (float64, error) {
	if !utf8.Valid(b) {
		return 0, domain.NewDomainError("peripheral.DecodePayload", domain.ErrDecodePayload, "payload is not valid UTF-8")
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return 0, domain.NewDomainError("peripheral.DecodePayload", domain.ErrDecodePayload, "empty payload")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, domain.NewDomainError("peripheral.DecodePayload", domain.ErrDecodePayload, strconv.Quote(s))
	}
	return v, nil
}
