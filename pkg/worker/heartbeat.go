package worker

import (
	"context"
	"errors"
	"time"

	// Packages
	server "github.com/mutablelogic/go-server"
)

////////////////////////////////////////////////////////////////////////////////
// TYPES

// heartbeater renews one lease on a fixed period for as long as its
// context lives. A transient renewal failure is tolerated; a lost lease
// invokes onLost so the execution can be abandoned.
type heartbeater struct {
	period time.Duration
	renew  func(context.Context) error
	onLost func()
	log    server.Logger
}

////////////////////////////////////////////////////////////////////////////////
// PRIVATE METHODS

// start begins renewing in a goroutine and returns a cancel function.
// The cancel function must be called before the completion report so a
// final heartbeat cannot race with the transition.
func (h *heartbeater) start(parent context.Context) context.CancelFunc {
	ctx, cancel := context.WithCancel(parent)
	go h.run(ctx)
	return cancel
}

func (h *heartbeater) run(ctx context.Context) {
	ticker := time.NewTicker(h.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := h.renew(ctx); err == nil {
				continue
			} else if errors.Is(err, ErrLeaseLost) {
				h.onLost()
				return
			} else if ctx.Err() == nil && h.log != nil {
				// Transient failure, renew again on the next tick
				h.log.Print(ctx, "heartbeat: ", err)
			}
		}
	}
}
