// Package ingest decodes signal and funding-event CSV files.
package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-engine/internal/model"
)

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
}

// ParseDate accepts RFC 3339 timestamps and the common date-only layouts.
// Date-only values are midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("ingest: unrecognized date %q", s)
}

var unmarshalers = csvutil.NewUnmarshalers(
	csvutil.UnmarshalFunc(func(data []byte, t *time.Time) error {
		v, err := ParseDate(string(data))
		if err != nil {
			return err
		}
		*t = v
		return nil
	}),
)

// ReadSignals decodes signals from CSV with a header row. The text column
// is required; rows with blank text are skipped and counted.
func ReadSignals(r io.Reader) ([]model.Signal, int, error) {
	var rows []model.Signal
	if err := decode(r, &rows); err != nil {
		return nil, 0, eris.Wrap(err, "ingest: read signals")
	}

	out := rows[:0]
	skipped := 0
	for _, s := range rows {
		if s.Validate() != nil {
			skipped++
			continue
		}
		if s.SourceType == "" {
			s.SourceType = model.SourceCSV
		}
		out = append(out, s)
	}
	return out, skipped, nil
}

// ReadFundingEvents decodes funding events from CSV with a header row.
// Rows without a company name or announcement date are rejected.
func ReadFundingEvents(r io.Reader) ([]model.FundingEvent, error) {
	var rows []model.FundingEvent
	if err := decode(r, &rows); err != nil {
		return nil, eris.Wrap(err, "ingest: read funding events")
	}
	for i, ev := range rows {
		if strings.TrimSpace(ev.CompanyName) == "" {
			return nil, eris.Errorf("ingest: funding row %d: company_name is required", i+1)
		}
		if ev.AnnouncedDate.IsZero() {
			return nil, eris.Errorf("ingest: funding row %d: announced_date is required", i+1)
		}
	}
	return rows, nil
}

func decode(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrap(err, "read input")
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	cr := csv.NewReader(bytes.NewReader(data))
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		return eris.Wrap(err, "read header")
	}
	dec.WithUnmarshalers(unmarshalers)

	if err := dec.Decode(v); err != nil && err != io.EOF {
		return eris.Wrap(err, "decode rows")
	}
	return nil
}
