// Package ingest wires the journal reader and a batching sink together:
// the reader runs as a producer goroutine, a consumer goroutine drains
// entries, projects them to rows, and commits them to the sink on size
// or time thresholds.
package ingest

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"time"

	"journalchd/internal/journal"
	"journalchd/internal/logger"
	"journalchd/internal/metrics"
	"journalchd/internal/row"
)

// CommitResult reports what a Commit call actually flushed.
type CommitResult struct {
	Entries      int
	Transactions int
}

// Sink is the opaque batching collaborator the pipeline writes rows to.
// Write buffers a row; Commit flushes the buffer when a size or time
// threshold is exceeded (entries == 0 when nothing was flushed); End
// flushes unconditionally and releases resources.
type Sink interface {
	Write(r row.Row) error
	Commit() (CommitResult, error)
	End() error
}

// lagThreshold is how far behind row.Timestamp now must be before the
// pipeline logs a commit as lagging.
const lagThreshold = 5 * time.Second

// ChannelCapacity returns the bounded channel size the pipeline should
// use between reader and sink: 4x the available parallelism, scaling
// with available CPU the way a flow writer's channel capacity should.
func ChannelCapacity() int {
	return 4 * runtime.GOMAXPROCS(0)
}

// Pipeline owns the producer (journal reader) and consumer (sink) tasks
// and joins them on shutdown.
type Pipeline struct {
	sink       Sink
	observer   *metrics.Observer
	binaryMode journal.BinaryMode
}

// New builds a Pipeline against sink, recording measurements on observer.
func New(sink Sink, observer *metrics.Observer, mode journal.BinaryMode) *Pipeline {
	return &Pipeline{sink: sink, observer: observer, binaryMode: mode}
}

// Run drives entries from r to completion: a reader goroutine parses
// entries onto a bounded channel, a consumer goroutine projects and
// commits them. Run returns when r reaches EOF, shutdown fires, or
// either task fails — whichever happens first. It always calls the
// sink's End before returning.
//
// shutdown is a single-fire broadcast channel (closed exactly once),
// kept separate from the reader/sink contexts so a caller can close it
// from a signal handler without reaching into pipeline internals.
func (p *Pipeline) Run(ctx context.Context, r io.Reader, shutdown <-chan struct{}) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		select {
		case <-shutdown:
			cancel()
		case <-runCtx.Done():
		}
	}()

	entries := make(chan *journal.Entry, ChannelCapacity())

	var wg sync.WaitGroup
	errs := make(chan error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(entries)
		if err := journal.ReadEntries(runCtx, r, entries); err != nil {
			errs <- fmt.Errorf("ingest: reader: %w", err)
			cancel()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.consume(runCtx, entries); err != nil {
			errs <- fmt.Errorf("ingest: sink: %w", err)
			cancel() // unblock the reader, which may be parked on a channel send
		}
	}()

	wg.Wait()
	close(errs)

	endErr := p.sink.End()

	for err := range errs {
		if err != nil {
			return err
		}
	}
	if endErr != nil {
		return fmt.Errorf("ingest: end: %w", endErr)
	}
	return nil
}

// consume is the sink task: project each entry to a row, write it, and
// commit on the sink's own thresholds. It returns nil on a clean
// shutdown (context cancelled or the channel closed by the reader).
func (p *Pipeline) consume(ctx context.Context, entries <-chan *journal.Entry) error {
	for {
		select {
		case <-ctx.Done():
			return nil

		case entry, ok := <-entries:
			if !ok {
				return nil
			}

			hostname, _ := entry.Get(journal.KeyHostname)
			start := time.Now()
			r, err := row.ToRow(entry, p.binaryMode)
			p.observer.ObserveParseTime(time.Since(start))
			if err != nil {
				p.observer.IncUnprocessable(hostnameOf(hostname.String(p.binaryMode)))
				logger.Error("ingest: dropping unprocessable entry: %v", err)
				continue
			}

			p.observer.IncProcessed(r.Hostname)
			p.observer.SetLastReceivedTimestamp(r.Hostname, r.Timestamp)

			if err := p.sink.Write(r); err != nil {
				return err
			}
			result, err := p.sink.Commit()
			if err != nil {
				return err
			}

			if lag := time.Since(r.Timestamp); lag > lagThreshold {
				logger.Info("ingest: commit lag=%s committed_entries=%d committed_transactions=%d",
					lag, result.Entries, result.Transactions)
			}
		}
	}
}

// hostnameOf turns the _HOSTNAME value read from an entry before its
// projection failed into a metric label. row.ToRow returns a zero-value
// Row on any error, so the value is read from the entry beforehand; an
// entry without _HOSTNAME is labelled "unknown" rather than left empty.
func hostnameOf(hostname string) string {
	if hostname == "" {
		return "unknown"
	}
	return hostname
}
