// Package signalbridge adapts OS termination signals into a single-fire
// shutdown channel, so the rest of the program only has to select on a
// plain chan struct{}.
package signalbridge

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Shutdown returns a channel that is closed exactly once, on the first
// SIGINT or SIGTERM the process receives. Further signals are ignored —
// the caller is expected to be already unwinding by the time they arrive.
// stop releases the underlying signal.Notify registration; it does not
// close the channel.
func Shutdown() (ch <-chan struct{}, stop func()) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	var once sync.Once

	go func() {
		if _, ok := <-sig; ok {
			once.Do(func() { close(done) })
		}
	}()

	return done, func() { signal.Stop(sig) }
}
