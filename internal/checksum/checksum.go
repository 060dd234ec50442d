// Package checksum fingerprints the serial-number membership of a batch.
//
// The digest covers serial numbers only. Two batches with the same multiset
// of serial numbers hash identically regardless of item order or of any
// other field values.
package checksum

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/ChrisHK/label-printer/internal/model"
)

// canonicalItem fixes the field set and order of the serialized form.
type canonicalItem struct {
	SerialNumber string `json:"serialnumber"`
}

// Calculate returns the hex SHA-256 digest of the items' sorted serial numbers.
// A nil slice is not a sequence and yields a ValidationError; an empty
// non-nil slice hashes the empty list.
func Calculate(items []model.RawItem) (string, error) {
	if items == nil {
		return "", model.NewValidationError("items must be an array")
	}

	canonical := make([]canonicalItem, len(items))
	for i, item := range items {
		canonical[i] = canonicalItem{SerialNumber: serialOf(item)}
	}
	sort.SliceStable(canonical, func(i, j int) bool {
		return canonical[i].SerialNumber < canonical[j].SerialNumber
	})

	payload, err := encode(canonical)
	if err != nil {
		return "", fmt.Errorf("failed to encode canonical items: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), nil
}

// CalculateJSON decodes a JSON array of items and calculates its digest.
func CalculateJSON(data []byte) (string, error) {
	items, err := DecodeItems(data)
	if err != nil {
		return "", err
	}
	return Calculate(items)
}

// Verify recomputes the digest and compares it exactly with provided.
// It never fails: any error, including a nil input, yields false.
func Verify(items []model.RawItem, provided string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	if provided == "" {
		return false
	}
	digest, err := Calculate(items)
	if err != nil {
		return false
	}
	return digest == provided
}

// DecodeItems decodes a JSON array of item objects, keeping numbers as json.Number.
func DecodeItems(data []byte) ([]model.RawItem, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var items []model.RawItem
	if err := dec.Decode(&items); err != nil {
		return nil, model.NewValidationError("items must be an array of objects: %v", err)
	}
	if items == nil {
		return nil, model.NewValidationError("items must be an array")
	}
	return items, nil
}

func serialOf(item model.RawItem) string {
	s, _ := model.Text(item["serialnumber"])
	return s
}

// encode writes compact JSON without HTML escaping. U+2028 and U+2029 stay
// literal, as JSON.stringify emits them.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return unescapeLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// unescapeLineSeparators turns the \u2028 and \u2029 escapes written by
// encoding/json back into raw characters. Other escapes are copied as is.
func unescapeLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if esc := b[i+1:]; len(esc) >= 5 && string(esc[:4]) == "u202" && (esc[4] == '8' || esc[4] == '9') {
			if esc[4] == '8' {
				out = append(out, "\u2028"...)
			} else {
				out = append(out, "\u2029"...)
			}
			i += 5
			continue
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}
