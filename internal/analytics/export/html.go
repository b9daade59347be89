package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/odyssey-erp/execdash/internal/analytics"
)

// DataMarker is the script statement the page template declares for the
// snapshot payload.
const DataMarker = "let DATA = null;"

// ErrMissingMarker is returned when a template has no DataMarker.
var ErrMissingMarker = errors.New("export: template missing data marker")

// MarshalSnapshot renders the indented JSON file form of a snapshot.
func MarshalSnapshot(snap analytics.Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export: marshal snapshot: %w", err)
	}
	return append(data, '\n'), nil
}

// RenderDocument inlines the snapshot into the first DataMarker of tmpl.
// The payload is compact JSON with HTML-significant characters escaped so it
// cannot terminate the surrounding script element.
func RenderDocument(tmpl []byte, snap analytics.Snapshot) ([]byte, error) {
	idx := bytes.Index(tmpl, []byte(DataMarker))
	if idx < 0 {
		return nil, ErrMissingMarker
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("export: marshal snapshot: %w", err)
	}
	var out bytes.Buffer
	out.Grow(len(tmpl) + len(payload) + 16)
	out.Write(tmpl[:idx])
	out.WriteString("let DATA = ")
	out.Write(payload)
	out.WriteString(";")
	out.Write(tmpl[idx+len(DataMarker):])
	return out.Bytes(), nil
}
