// services/scheduler.go
package services

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// StartProposalFinalizer closes expired proposals on a fixed interval.
// The caller owns the returned scheduler and must Shutdown it.
func (e *Engine) StartProposalFinalizer(ctx context.Context, every time.Duration) (gocron.Scheduler, error) {
	if every <= 0 {
		every = time.Minute
	}

	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	_, err = sched.NewJob(
		gocron.DurationJob(every),
		gocron.NewTask(func() {
			summary, err := e.FinalizeExpiredProposals(ctx)
			if err != nil {
				e.Log.Error("proposal finalizer failed", "error", err)
				return
			}
			if summary.Passed+summary.Rejected > 0 {
				e.Log.Info("proposals finalized", "passed", summary.Passed, "rejected", summary.Rejected)
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	sched.Start()
	return sched, nil
}
