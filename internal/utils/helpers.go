package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// MaxJSONBodyBytes caps request bodies decoded by DecodeJSONBody.
const MaxJSONBodyBytes = 1 << 20

// WriteJSONResponse writes a JSON response to the http.ResponseWriter
func WriteJSONResponse(w http.ResponseWriter, data any) error {
	w.Header().Set("Content-Type", "application/json")
	// Use Marshal instead of Encoder for better performance with large payloads
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = w.Write(jsonData)
	return err
}

// DecodeJSONBody decodes a size-limited JSON request body into dst. An empty
// body leaves dst untouched.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.Body == nil {
		return nil
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if err == io.EOF {
			return nil
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

// ParseBool interprets common boolean strings, returning true for typical truthy values.
func ParseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// ContentDisposition builds an attachment header value for filename. Quotes
// and line breaks are dropped so the value cannot break out of the header.
func ContentDisposition(filename string) string {
	clean := strings.NewReplacer("\"", "", "\r", "", "\n", "").Replace(filename)
	return fmt.Sprintf("attachment; filename=\"%s\"", clean)
}
