package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"

	"cellpulse/internal/dataprocessing"
)

// encodeTable serializes a table for the disk tier. gob preserves the full
// columnar structure including null masks and timestamps.
func encodeTable(t *dataprocessing.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return nil, fmt.Errorf("failed to encode table: %w", err)
	}
	return buf.Bytes(), nil
}

// decodeTable deserializes a disk blob back into a table. A decode error
// means the blob is corrupt and the caller should treat the entry as a miss.
func decodeTable(data []byte) (*dataprocessing.Table, error) {
	var t dataprocessing.Table
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&t); err != nil {
		return nil, fmt.Errorf("failed to decode table: %w", err)
	}
	return &t, nil
}
