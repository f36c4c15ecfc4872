package web

import (
	"errors"
	"time"

	"taskprogress/internal/queue"
)

// watchAbandoned cancels tasks nobody polls any more, until shutdown.
func (a *App) watchAbandoned() {
	ticker := time.NewTicker(a.config.AbandonmentInterval)
	defer ticker.Stop()

	a.log.Infof("Abandonment detector started: timeout=%v, checking every %v",
		a.config.AbandonmentTimeout, a.config.AbandonmentInterval)
	for {
		select {
		case <-a.shutdownCtx.Done():
			a.log.Info("Abandonment detector stopped")
			return
		case <-ticker.C:
			a.cancelAbandoned()
		}
	}
}

func (a *App) cancelAbandoned() {
	ids := a.polls.abandoned()
	a.log.Debugf("[Abandonment] %d of %d tracked tasks abandoned", len(ids), a.polls.size())

	for _, taskID := range ids {
		log := a.log.WithField("task_id", taskID)
		status, err := a.cancelTask(a.shutdownCtx, taskID)
		switch {
		case errors.Is(err, queue.ErrResultNotFound), errors.Is(err, errTaskFinished):
			log.Infof("[Abandonment] Task %s already gone: %v", taskID, err)
		case err != nil:
			// tracked until a later check succeeds
			log.Warnf("[Abandonment] Failed to cancel task %s: %v", taskID, err)
			continue
		default:
			log.Infof("[Abandonment] Task %s: %s", taskID, status)
		}
		a.polls.forget(taskID)
	}
}
