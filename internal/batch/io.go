package batch

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shpitdev/stakeholder-profiler/internal/pipeline"
	"github.com/shpitdev/stakeholder-profiler/internal/profile"
)

// ReadRequestsCSV reads stakeholder rows from a CSV with a header. The "name"
// column is required; "role" and "organisation" (or "organization"/"company")
// are optional.
func ReadRequestsCSV(r io.Reader) ([]profile.Request, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	nameIdx, roleIdx, orgIdx := -1, -1, -1
	for i, col := range header {
		switch strings.ToLower(strings.TrimSpace(col)) {
		case "name":
			nameIdx = i
		case "role", "title":
			roleIdx = i
		case "organisation", "organization", "company":
			orgIdx = i
		}
	}
	if nameIdx < 0 {
		return nil, fmt.Errorf("missing required column %q", "name")
	}

	field := func(rec []string, idx int) string {
		if idx < 0 || idx >= len(rec) {
			return ""
		}
		return rec[idx]
	}

	var reqs []profile.Request
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		if nameIdx >= len(rec) {
			return nil, fmt.Errorf("row has %d columns, want at least %d", len(rec), nameIdx+1)
		}
		reqs = append(reqs, profile.Request{
			Name:         rec[nameIdx],
			Role:         field(rec, roleIdx),
			Organisation: field(rec, orgIdx),
		}.Normalized())
	}
	return reqs, nil
}

type jsonlRow struct {
	Name         string          `json:"name"`
	Role         string          `json:"role,omitempty"`
	Organisation string          `json:"organisation,omitempty"`
	Profile      *profile.Record `json:"profile,omitempty"`
	Retries      int             `json:"retries"`
	Error        string          `json:"error,omitempty"`
	ErrorKind    string          `json:"error_kind,omitempty"`
	Raw          string          `json:"raw,omitempty"`
}

// WriteJSONL writes one JSON object per output, in order.
func WriteJSONL(w io.Writer, outs []Output) error {
	enc := json.NewEncoder(w)
	for _, o := range outs {
		row := jsonlRow{
			Name:         o.Request.Name,
			Role:         o.Request.Role,
			Organisation: o.Request.Organisation,
			Retries:      o.Retries,
		}
		if o.Err == nil {
			rec := o.Record
			row.Profile = &rec
		} else {
			row.Error = o.Err.Error()
			var pe *pipeline.Error
			if errors.As(o.Err, &pe) {
				row.Error = pe.Message
				row.ErrorKind = string(pe.Kind)
				row.Raw = pe.Raw
			}
		}
		if err := enc.Encode(row); err != nil {
			return fmt.Errorf("write row %d: %w", o.Index, err)
		}
	}
	return nil
}
