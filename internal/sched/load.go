package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// spin keeps the calling thread busy for d.
func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
	}
}

func acceptConnections() { spin(5 * time.Microsecond) }
func processRequest()    { spin(40 * time.Microsecond) }
func healthCheck()       { spin(150 * time.Microsecond) }
func compressResponse()  { spin(2 * time.Millisecond) }

// DemoLoad submits a fixed mix of synthetic tasks every interval until ctx
// is done, so that a freshly started server has something to report.
func DemoLoad(ctx context.Context, p *Pool, interval time.Duration, logger zerolog.Logger) {
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	logger = logger.With().Str("component", "demo_load").Logger()
	logger.Info().Dur("interval", interval).Msg("Starting synthetic load")

	mix := []struct {
		name   string
		fn     func()
		weight int
	}{
		{"accept_connections", acceptConnections, 20},
		{"process_request", processRequest, 10},
		{"health_check", healthCheck, 2},
		{"compress_response", compressResponse, 1},
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Stopping synthetic load")
			return
		case <-ticker.C:
		}

		for _, m := range mix {
			for i := 0; i < m.weight; i++ {
				if err := p.SubmitNamed(ctx, m.name, m.fn); err != nil {
					if !errors.Is(err, ErrPoolStopped) && !errors.Is(err, context.Canceled) {
						logger.Warn().Err(err).Str("task", m.name).Msg("Failed to submit task")
					}
					return
				}
			}
		}
	}
}
