package main

import (
	"context"
	"os"
	"sync/atomic"

	"mpiterm/internal/logging"
)

// watchSignals cancels the run on the first signal. A second signal forces
// teardown through force, for a run stuck somewhere that ignores
// cancellation.
func watchSignals(logger *logging.Logger, cancel context.CancelFunc, force func(), interrupted *atomic.Bool, signalCh <-chan os.Signal) func() {
	if signalCh == nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig, ok := <-signalCh:
				if !ok {
					return
				}
				fields := map[string]string{}
				if sig != nil {
					fields["signal"] = sig.String()
				}
				if interrupted.CompareAndSwap(false, true) {
					if logger != nil {
						logger.Info("interrupt received; tearing down", fields)
					}
					if cancel != nil {
						cancel()
					}
					continue
				}
				if logger != nil {
					logger.Warn("second interrupt; forcing teardown", fields)
				}
				if force != nil {
					force()
				}
				return
			}
		}
	}()

	return func() {
		close(done)
	}
}
