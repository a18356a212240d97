package rendezvous

import (
	"context"
	"time"
)

// Poller re-scans the scope directory at a fixed interval.
type Poller struct {
	options Options
}

func NewPoller(options Options) *Poller {
	return &Poller{options: options}
}

func (p *Poller) Wait(ctx context.Context, dir string, want int) ([]AttachPoint, error) {
	if want < 1 {
		return nil, ErrInvalidCount
	}
	deadline, stop := deadlineChannel(p.options.Timeout)
	defer stop()

	interval := p.options.interval()
	for {
		points, ok, err := attempt(dir, want, p.options)
		if err != nil {
			return nil, err
		}
		if ok {
			return points, nil
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-deadline:
			timer.Stop()
			return nil, timeoutError(dir, want, p.options)
		case <-timer.C:
		}
	}
}
