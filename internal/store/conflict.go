package store

import (
	"fmt"
	"log/slog"

	"github.com/sandeepkv93/dayplan/internal/model"
)

// Duplicate records one copy dropped by the conflict scan.
type Duplicate struct {
	ID      string
	Dropped string
	Kept    string
}

type ConflictReport struct {
	Duplicates []Duplicate
	// Requeued lists group copies whose status was corrected to queued.
	Requeued []string
	// Released lists tasks whose queue flag and queue entry disagreed and
	// were settled outside the queues.
	Released []string
}

func (r ConflictReport) Empty() bool {
	return len(r.Duplicates) == 0 && len(r.Requeued) == 0 && len(r.Released) == 0
}

func (r ConflictReport) IDs() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	add := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, d := range r.Duplicates {
		add(d.ID)
	}
	for _, id := range r.Requeued {
		add(id)
	}
	for _, id := range r.Released {
		add(id)
	}
	return out
}

func (r ConflictReport) log(logger *slog.Logger) {
	for _, d := range r.Duplicates {
		logger.Warn("dropped duplicate task", "task_id", d.ID, "dropped", d.Dropped, "kept", d.Kept)
	}
	for _, id := range r.Requeued {
		logger.Info("task status corrected to queued", "task_id", id)
	}
	for _, id := range r.Released {
		logger.Info("task released from stale queued status", "task_id", id)
	}
}

type copyRef struct {
	where string
	pos   int
	task  model.Task
}

// pickNewest returns the index of the copy with the latest UpdatedAt. Ties
// go to the earliest copy.
func pickNewest(copies []copyRef) int {
	best := 0
	for i := 1; i < len(copies); i++ {
		if copies[i].task.UpdatedAt.After(copies[best].task.UpdatedAt) {
			best = i
		}
	}
	return best
}

// scan makes ids unique across groups, within each queue and across the two
// queues, then aligns group statuses with queue membership.
func scan(st *state) ConflictReport {
	var report ConflictReport

	// Groups.
	byID := make(map[string][]copyRef)
	order := make([]string, 0)
	pos := 0
	for _, g := range st.groups {
		for _, t := range g.Tasks {
			if _, ok := byID[t.ID]; !ok {
				order = append(order, t.ID)
			}
			byID[t.ID] = append(byID[t.ID], copyRef{where: "group:" + g.Name, pos: pos, task: t})
			pos++
		}
	}
	keepPos := make(map[int]bool)
	for _, id := range order {
		copies := byID[id]
		best := pickNewest(copies)
		keepPos[copies[best].pos] = true
		for i, c := range copies {
			if i != best {
				report.Duplicates = append(report.Duplicates, Duplicate{ID: id, Dropped: describe(c), Kept: describe(copies[best])})
			}
		}
	}
	pos = 0
	for gi := range st.groups {
		kept := make([]model.Task, 0, len(st.groups[gi].Tasks))
		for _, t := range st.groups[gi].Tasks {
			if keepPos[pos] {
				kept = append(kept, t)
			}
			pos++
		}
		st.groups[gi].Tasks = kept
	}

	// Each queue on its own.
	for _, kind := range []model.QueueKind{model.QueueManual, model.QueueAutomatic} {
		q := st.queue(kind)
		*q = dedupQueue(*q, "queue:"+string(kind), &report)
	}

	// Across queues. The manual queue wins unless the automatic copy is newer.
	manualAt := make(map[string]int, len(st.manual))
	for i, t := range st.manual {
		manualAt[t.ID] = i
	}
	autoKept := st.automatic[:0]
	dropManual := make(map[string]bool)
	for i, t := range st.automatic {
		mi, clash := manualAt[t.ID]
		if !clash {
			autoKept = append(autoKept, t)
			continue
		}
		m := copyRef{where: "queue:manual", pos: mi, task: st.manual[mi]}
		a := copyRef{where: "queue:automatic", pos: i, task: t}
		if a.task.UpdatedAt.After(m.task.UpdatedAt) {
			dropManual[t.ID] = true
			autoKept = append(autoKept, t)
			report.Duplicates = append(report.Duplicates, Duplicate{ID: t.ID, Dropped: describe(m), Kept: describe(a)})
			continue
		}
		report.Duplicates = append(report.Duplicates, Duplicate{ID: t.ID, Dropped: describe(a), Kept: describe(m)})
	}
	st.automatic = autoKept
	if len(dropManual) > 0 {
		kept := st.manual[:0]
		for _, t := range st.manual {
			if !dropManual[t.ID] {
				kept = append(kept, t)
			}
		}
		st.manual = kept
	}

	// Status alignment.
	for gi := range st.groups {
		for ti := range st.groups[gi].Tasks {
			t := &st.groups[gi].Tasks[ti]
			if t.Status == "" {
				t.Status = model.StatusActive
			}
			_, queued := st.queueOf(t.ID)
			switch {
			case queued && t.Status == model.StatusActive:
				t.Status = model.StatusQueued
				report.Requeued = append(report.Requeued, t.ID)
			case queued && t.Status == model.StatusCompleted:
				st.removeFromQueues(t.ID)
				report.Released = append(report.Released, t.ID)
			case !queued && t.Status == model.StatusQueued:
				t.Status = model.StatusActive
				report.Released = append(report.Released, t.ID)
			}
		}
	}
	return report
}

func dedupQueue(q []model.Task, where string, report *ConflictReport) []model.Task {
	byID := make(map[string][]copyRef)
	order := make([]string, 0)
	for i, t := range q {
		if _, ok := byID[t.ID]; !ok {
			order = append(order, t.ID)
		}
		byID[t.ID] = append(byID[t.ID], copyRef{where: where, pos: i, task: t})
	}
	if len(order) == len(q) {
		return q
	}
	out := make([]model.Task, 0, len(order))
	for _, id := range order {
		copies := byID[id]
		best := pickNewest(copies)
		for i, c := range copies {
			if i != best {
				report.Duplicates = append(report.Duplicates, Duplicate{ID: id, Dropped: describe(c), Kept: describe(copies[best])})
			}
		}
		out = append(out, copies[best].task)
	}
	return out
}

func describe(c copyRef) string {
	return fmt.Sprintf("%s#%d", c.where, c.pos)
}
