package event

import (
	"strconv"
	"strings"
	"time"

	mineerrors "github.com/randalmurphal/seqmine/pkg/seqmine/errors"
)

// timestampLayouts are tried in order by ParseTimestamp.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTimestamp parses the date-time forms found in event tables.
// Values without a zone are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// ParseRecords builds a Store from a three-column table:
// timestamp, origin, destination. A leading header row is skipped when its
// first cell reads "timestamp".
//
// Record indexes in returned InputErrors count data rows from 0, header
// excluded.
func ParseRecords(rows [][]string) (*Store, error) {
	if len(rows) > 0 && isHeader(rows[0]) {
		rows = rows[1:]
	}

	events := make([]Event, 0, len(rows))
	for i, row := range rows {
		e, err := parseRecord(i, row)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return NewStore(events)
}

func isHeader(row []string) bool {
	return len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), "timestamp")
}

func parseRecord(index int, row []string) (Event, error) {
	if len(row) != 3 {
		return Event{}, &mineerrors.InputError{Record: index, Err: mineerrors.ErrFieldCount}
	}

	raw := strings.TrimSpace(row[0])
	if raw == "" {
		return Event{}, &mineerrors.InputError{Record: index, Field: "timestamp", Err: mineerrors.ErrMissingField}
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return Event{}, &mineerrors.InputError{Record: index, Field: "timestamp", Value: raw, Err: mineerrors.ErrMalformedField}
	}

	origin, err := parseID(index, "origin", row[1])
	if err != nil {
		return Event{}, err
	}
	destination, err := parseID(index, "destination", row[2])
	if err != nil {
		return Event{}, err
	}

	return Event{Timestamp: ts, Origin: origin, Destination: destination}, nil
}

func parseID(index int, field, raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, &mineerrors.InputError{Record: index, Field: field, Err: mineerrors.ErrMissingField}
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &mineerrors.InputError{Record: index, Field: field, Value: raw, Err: mineerrors.ErrMalformedField}
	}
	return id, nil
}
