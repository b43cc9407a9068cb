package journal

// entryFieldCapacity preallocates the field map for the expected
// cardinality of a journal entry — a dozen or so fields.
const entryFieldCapacity = 16

// Entry is a parsed journal record: a mapping from field key to field
// value. Keys are unique; a repeated key during parsing keeps only the
// last value seen. Insertion order is not observable.
type Entry struct {
	fields map[string]Value
}

func newEntry() *Entry {
	return &Entry{fields: make(map[string]Value, entryFieldCapacity)}
}

// put inserts or overwrites a field. Returns true if the key already had a value.
func (e *Entry) put(key string, v Value) bool {
	_, existed := e.fields[key]
	e.fields[key] = v
	return existed
}

// Get looks up a field without removing it.
func (e *Entry) Get(key string) (Value, bool) {
	v, ok := e.fields[key]
	return v, ok
}

// Take removes and returns a field, for destructive row projection.
func (e *Entry) Take(key string) (Value, bool) {
	v, ok := e.fields[key]
	if ok {
		delete(e.fields, key)
	}
	return v, ok
}

// Len reports the number of fields remaining in the entry.
func (e *Entry) Len() int { return len(e.fields) }

// Each iterates the remaining fields in unspecified order. fn must not
// mutate the entry.
func (e *Entry) Each(fn func(key string, v Value)) {
	for k, v := range e.fields {
		fn(k, v)
	}
}

// Distinguished field keys with semantic meaning to row projection.
const (
	KeyTransport          = "_TRANSPORT"
	KeyHostname           = "_HOSTNAME"
	KeyMachineID          = "_MACHINE_ID"
	KeyBootID             = "_BOOT_ID"
	KeyCursor             = "__CURSOR"
	KeyRealtimeTimestamp  = "__REALTIME_TIMESTAMP"
	KeySeqnum             = "__SEQNUM"
	KeySeqnumID           = "__SEQNUM_ID"
	KeyMonotonicTimestamp = "__MONOTONIC_TIMESTAMP"
)
