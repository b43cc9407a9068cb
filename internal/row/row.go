// Package row projects a parsed journal entry into the flat shape the
// ingest pipeline hands to a sink.
package row

import (
	"fmt"
	"strconv"
	"time"

	"journalchd/internal/journal"
)

// KV is one remaining (key, value-as-string) pair carried by a Row's record.
type KV struct {
	Key   string
	Value string
}

// Row is the projected, sink-ready shape of one journal entry.
type Row struct {
	MachineID string
	BootID    string
	Hostname  string
	Transport string
	Cursor    string
	Timestamp time.Time
	Record    []KV
}

// MissingFieldError reports that a distinguished field required by
// projection was absent from the entry.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("row: missing field %q", e.Field)
}

// UnspecifiedError reports a distinguished field that was present but
// could not be interpreted (currently: a malformed realtime timestamp).
type UnspecifiedError struct {
	Cause error
}

func (e *UnspecifiedError) Error() string {
	return fmt.Sprintf("row: unspecified: %v", e.Cause)
}

func (e *UnspecifiedError) Unwrap() error { return e.Cause }

// filteredKeys duplicates information already carried by the cursor and
// is dropped from the remaining-field record rather than surfaced twice.
var filteredKeys = map[string]bool{
	journal.KeySeqnum:             true,
	journal.KeySeqnumID:           true,
	journal.KeyMonotonicTimestamp: true,
}

// ToRow destructively projects entry into a Row. On success entry is left
// empty: the distinguished fields, the record's fields and the filtered
// duplicate-information keys are all removed by Take.
func ToRow(entry *journal.Entry, mode journal.BinaryMode) (Row, error) {
	transport, err := takeRequired(entry, journal.KeyTransport, mode)
	if err != nil {
		return Row{}, err
	}
	machineID, err := takeRequired(entry, journal.KeyMachineID, mode)
	if err != nil {
		return Row{}, err
	}
	bootID, err := takeRequired(entry, journal.KeyBootID, mode)
	if err != nil {
		return Row{}, err
	}
	hostname, err := takeRequired(entry, journal.KeyHostname, mode)
	if err != nil {
		return Row{}, err
	}
	cursor, err := takeRequired(entry, journal.KeyCursor, mode)
	if err != nil {
		return Row{}, err
	}
	rawTimestamp, err := takeRequired(entry, journal.KeyRealtimeTimestamp, mode)
	if err != nil {
		return Row{}, err
	}

	micros, err := strconv.ParseInt(rawTimestamp, 10, 64)
	if err != nil {
		return Row{}, &UnspecifiedError{Cause: fmt.Errorf("realtime timestamp %q: %w", rawTimestamp, err)}
	}
	timestamp := time.UnixMicro(micros).UTC()

	record := make([]KV, 0, entry.Len())
	entry.Each(func(key string, v journal.Value) {
		if filteredKeys[key] {
			return
		}
		record = append(record, KV{Key: key, Value: v.String(mode)})
	})
	for _, kv := range record {
		entry.Take(kv.Key)
	}
	for key := range filteredKeys {
		entry.Take(key)
	}

	return Row{
		MachineID: machineID,
		BootID:    bootID,
		Hostname:  hostname,
		Transport: transport,
		Cursor:    cursor,
		Timestamp: timestamp,
		Record:    record,
	}, nil
}

// takeRequired removes key from entry and renders it as a string, or
// reports MissingFieldError.
func takeRequired(entry *journal.Entry, key string, mode journal.BinaryMode) (string, error) {
	v, ok := entry.Take(key)
	if !ok {
		return "", &MissingFieldError{Field: key}
	}
	return v.String(mode), nil
}
