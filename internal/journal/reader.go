package journal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// readStep is the minimum number of bytes the reader asks for when the
// parser's demand is unknown — this keeps the reader from blocking past
// an entry boundary on a live tail.
const readStep = 1

// ReadEntries drives r and the field parser, emitting each fully parsed
// entry on out in input order. It returns nil when r reports EOF at a
// clean entry boundary, when ctx is cancelled while trying to hand off an
// entry (the sink has gone away), or propagates IO/parse errors otherwise.
//
// ctx takes the place of the Rust original's "sender.send returned
// Err(channel closed)" check: Go channels have no such signal on send, so
// cancelling ctx is how the consumer tells the producer to stop.
func ReadEntries(ctx context.Context, r io.Reader, out chan<- *Entry) error {
	buf := make([]byte, 0, 8192)
	current := newEntry()

	for {
		remaining, field, perr := ParseField(buf)

		var toRead int
		switch {
		case perr == nil:
			buf = truncateAndExtend(buf, remaining)
			current.put(field.Key, field.Value)
			toRead = readStep

		case isIncomplete(perr):
			d, _ := IsIncomplete(perr)
			if d.Exact {
				toRead = d.N
				if toRead < 1 {
					toRead = 1
				}
			} else {
				toRead = readStep
			}

		case IsEOF(perr):
			if len(buf) == 1 && buf[0] == '\n' {
				select {
				case out <- current:
				case <-ctx.Done():
					slog.Debug("journal reader: shutdown while sending entry")
					return nil
				}
				current = newEntry()
				buf = buf[:0]
			}
			toRead = readStep

		default:
			pe := perr.(*ParseError)
			return fmt.Errorf("journal: parse error (%s): %w", pe.Kind, perr)
		}

		n, err := readUpTo(r, &buf, toRead)
		if err != nil {
			return fmt.Errorf("journal: read error: %w", err)
		}
		if n == 0 {
			// Genuine EOF: no more bytes are coming. Whether buf is
			// empty (clean boundary) or holds a truncated partial
			// field, there is nothing further to do — return cleanly
			// rather than re-parsing the same bytes forever.
			return nil
		}
	}
}

func isIncomplete(err error) bool {
	_, ok := IsIncomplete(err)
	return ok
}

// truncateAndExtend reuses buf's backing array, truncating then
// extending rather than reallocating on every read.
func truncateAndExtend(buf, remaining []byte) []byte {
	buf = buf[:0]
	buf = append(buf, remaining...)
	return buf
}

// readUpTo appends up to n bytes read from r onto *buf. Short reads are
// tolerated; it returns the number of bytes actually appended and an
// error only for IO failures (io.EOF is not an error here — it surfaces
// as n == 0, nil).
func readUpTo(r io.Reader, buf *[]byte, n int) (int, error) {
	if n <= 0 {
		n = readStep
	}
	start := len(*buf)
	*buf = append(*buf, make([]byte, n)...)
	read, err := io.ReadFull(r, (*buf)[start:])
	*buf = (*buf)[:start+read]
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return read, err
	}
	return read, nil
}
