package audit

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"time"
)

// WriteCSV merender baris timeline sebagai CSV dengan header.
func WriteCSV(rows []TimelineRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{"at", "actor", "action", "entity", "entity_id", "meta"}); err != nil {
		return nil, err
	}
	for _, row := range rows {
		meta := ""
		if len(row.Meta) > 0 {
			raw, err := json.Marshal(row.Meta)
			if err != nil {
				return nil, err
			}
			meta = string(raw)
		}
		if err := w.Write([]string{row.At.UTC().Format(time.RFC3339), row.Actor, row.Action, row.Entity, row.EntityID, meta}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
