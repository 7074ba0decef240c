package pool

import (
	"bytes"
	"fmt"
	"io"

	json "github.com/goccy/go-json"
)

// Stats is a point-in-time snapshot of a pool's accounting.
type Stats struct {
	Name      string `json:"name"`
	SoftLimit uint64 `json:"soft_limit"`
	HardLimit uint64 `json:"hard_limit"`
	Size      uint64 `json:"size"`
	Used      int    `json:"used"`
	Free      int    `json:"free"`
	FreeKeys  int    `json:"free_keys"`
	Deleted   bool   `json:"deleted"`
}

// JSON encodes the snapshot without HTML escaping.
func (s Stats) JSON() ([]byte, error) {
	return EncodeJSON(s)
}

// EncodeJSON marshals the value to JSON bytes without HTML escaping.
func EncodeJSON(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	encoder := json.NewEncoder(buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, fmt.Errorf("json encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte{'\n'}), nil
}

// WriteJSON encodes v with an indent and writes it to w.
func WriteJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("write encoded json: %w", err)
	}
	return nil
}
