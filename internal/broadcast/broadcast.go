// Package broadcast binds terminal surfaces to worker attach-points and
// releases the start barrier.
package broadcast

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/alessio/shellescape"

	"mpiterm/internal/logging"
	"mpiterm/internal/rendezvous"
	"mpiterm/internal/surface"
)

// AttachCommand renders the shell command a surface runs to connect to an
// attach-point.
type AttachCommand func(path string) string

// DtachAttach returns the attach command for the given dtach executable.
func DtachAttach(binary string) AttachCommand {
	if binary == "" {
		binary = "dtach"
	}
	return func(path string) string {
		return shellescape.QuoteCommand([]string{binary, "-a", path})
	}
}

type Broadcaster struct {
	Attach AttachCommand
	Logger *logging.Logger
}

// Broadcast types the attach command into surface i for attach-point i, then
// sends a bare newline to every surface. Each worker waits for that newline
// before it starts the user command.
//
// Either every surface receives its attach command before any receives the
// newline, or no newline is sent at all. points and set must have the same
// length; a mismatch is a programming error and panics.
func (b Broadcaster) Broadcast(points []rendezvous.AttachPoint, set surface.Set) error {
	if len(points) != set.Len() {
		panic(fmt.Sprintf("broadcast: %d attach points for %d surfaces", len(points), set.Len()))
	}
	attach := b.Attach
	if attach == nil {
		attach = DtachAttach("")
	}

	for i, point := range points {
		if err := set.Surface(i).Inject(attach(point.Path)); err != nil {
			return fmt.Errorf("attach surface %d: %w", i, err)
		}
		if b.Logger != nil {
			b.Logger.Debug("surface attach issued", map[string]string{
				"surface": strconv.Itoa(i),
				"path":    point.Path,
			})
		}
	}

	var releaseErr error
	for i := 0; i < set.Len(); i++ {
		if err := set.Surface(i).Submit(); err != nil {
			releaseErr = errors.Join(releaseErr, fmt.Errorf("release surface %d: %w", i, err))
		}
	}
	if releaseErr == nil && b.Logger != nil {
		b.Logger.Info("workers released", map[string]string{
			"count": strconv.Itoa(set.Len()),
		})
	}
	return releaseErr
}
