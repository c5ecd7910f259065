package call

import (
	"context"
	"log/slog"
	"time"
)

// Recovery rehydrates active calls from a durable store after a restart.
//
// Ringing calls keep their originally scheduled wall-clock expiry: the timer
// is re-armed with ring timeout minus the time already spent ringing, and a
// call whose window elapsed while the process was down is expired
// immediately. Answered calls need no timer; they end only by an explicit
// end action.
type Recovery struct {
	store       Store
	ctl         *Controller
	ringTimeout time.Duration
	log         *slog.Logger

	clock func() time.Time
}

func NewRecovery(store Store, ctl *Controller, ringTimeout time.Duration, log *slog.Logger) *Recovery {
	if log == nil {
		log = slog.Default()
	}
	return &Recovery{
		store:       store,
		ctl:         ctl,
		ringTimeout: ringTimeout,
		log:         log,
		clock:       time.Now,
	}
}

// Run performs the one-time startup rehydration. It returns the number of
// calls restored into the registry. Individual bad rows are logged and
// skipped; only a failing store listing aborts.
func (r *Recovery) Run(ctx context.Context) (int, error) {
	active, err := r.store.ListActiveCalls(ctx, StatusRinging, StatusAnswered)
	if err != nil {
		return 0, err
	}

	now := r.clock().UTC()
	restored := 0
	for _, c := range active {
		if err := r.ctl.Adopt(c); err != nil {
			r.log.Warn("skipping unrecoverable call", "call_id", c.ID, "err", err)
			continue
		}
		restored++

		if c.Status != StatusRinging {
			continue
		}
		elapsed := now.Sub(c.StartedAt)
		if elapsed >= r.ringTimeout {
			r.log.Info("expiring overdue call from previous run", "call_id", c.ID)
			r.ctl.ExpireIfStillRinging(ctx, c.ID)
			continue
		}
		r.ctl.ResumeRingTimer(c.ID, r.ringTimeout-elapsed)
	}

	r.log.Info("recovery complete", "restored", restored, "listed", len(active))
	return restored, nil
}
