package drivefeed

import (
	"bytes"
	"encoding/json"
)

// Record is one JSONL line in an uploaded batch. The field names are part
// of the staging contract with downstream consumers; do not rename them.
type Record struct {
	DocumentID       string `json:"document_id"`
	FileName         string `json:"file_name"`
	TextContent      string `json:"text_content"`
	LastModifiedDate string `json:"last_modified_date"`
	Source           string `json:"source"`
}

// encodeJSONL renders records as newline-delimited JSON, one object per line.
func encodeJSONL(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
