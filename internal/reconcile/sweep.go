package reconcile

import (
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
	"github.com/sandeepkv93/dayplan/internal/store"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

// ScanConflicts repairs duplicate ids across the groups and queues. The
// store logs each dropped copy.
func (r *Reconciler) ScanConflicts() store.ConflictReport {
	report := r.tasks.ScanConflicts()
	if !report.Empty() {
		r.logger.Info("conflict scan repaired state",
			"duplicates", len(report.Duplicates), "requeued", len(report.Requeued), "released", len(report.Released))
	}
	return report
}

// SweepOverdue moves active tasks whose day has passed, or whose due-by time
// has passed, into the automatic queue.
func (r *Reconciler) SweepOverdue() ([]string, error) {
	now := r.now()
	today := timemath.StartOfDay(now)
	var moved []string
	err := r.tasks.Batch(func(b *store.Batch) error {
		moved = nil
		for _, t := range b.Tasks() {
			if !overdue(t, today, now) {
				continue
			}
			if _, queued := b.QueueOf(t.ID); queued {
				continue
			}
			ok, err := b.MoveToQueue(t.ID, model.QueueAutomatic)
			if err != nil {
				return err
			}
			if ok {
				moved = append(moved, t.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(moved) > 0 {
		r.logger.Info("overdue tasks queued", "count", len(moved))
	}
	return moved, nil
}

func overdue(t model.Task, today, now time.Time) bool {
	if t.Status != model.StatusActive {
		return false
	}
	if t.Date != nil && timemath.StartOfDay(*t.Date).Before(today) {
		return true
	}
	return t.Sensitivity == model.SensitivityDueBy && t.ExactTime != nil && t.ExactTime.Before(now)
}
