package chsink

import (
	"bytes"
	"encoding/binary"

	"journalchd/internal/row"
)

// encodeRowBinary serialises batch in ClickHouse's RowBinary format: rows
// back to back, each column written in declaration order with no
// delimiters between columns or rows. Columns, in order:
//
//	machine_id, boot_id, hostname, transport, cursor  (String)
//	timestamp                                          (DateTime64(6), UInt64 microseconds since epoch)
//	record                                              (Map(String, String))
func encodeRowBinary(batch []row.Row) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range batch {
		writeString(&buf, r.MachineID)
		writeString(&buf, r.BootID)
		writeString(&buf, r.Hostname)
		writeString(&buf, r.Transport)
		writeString(&buf, r.Cursor)
		writeUint64(&buf, uint64(r.Timestamp.UnixMicro()))
		writeMap(&buf, r.Record)
	}
	return buf.Bytes(), nil
}

// writeString encodes a ClickHouse RowBinary String: a LEB128-encoded
// length (ClickHouse calls it a "Packed Uint") followed by the raw bytes.
func writeString(buf *bytes.Buffer, s string) {
	writeVarUint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

// writeMap encodes a Map(String, String) in the Array(Tuple(String,
// String)) layout ClickHouse uses for Map inside RowBinary: a Packed Uint
// element count followed by each key immediately followed by its value.
func writeMap(buf *bytes.Buffer, kvs []row.KV) {
	writeVarUint(buf, uint64(len(kvs)))
	for _, kv := range kvs {
		writeString(buf, kv.Key)
		writeString(buf, kv.Value)
	}
}

// writeVarUint writes v as an unsigned LEB128 varint, matching
// ClickHouse's variable-length "Packed Uint" used for String and Array
// length prefixes.
func writeVarUint(buf *bytes.Buffer, v uint64) {
	for v >= 0x80 {
		buf.WriteByte(byte(v) | 0x80)
		v >>= 7
	}
	buf.WriteByte(byte(v))
}
