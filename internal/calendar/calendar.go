// Package calendar supplies committed events that a plan must not
// double-book.
package calendar

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/sandeepkv93/dayplan/internal/model"
)

type Source interface {
	Events(ctx context.Context, start, end time.Time) ([]model.CommittedEvent, error)
}

// StaticSource serves a fixed list, such as commitments typed in by hand.
type StaticSource struct {
	Name  string
	Items []model.CommittedEvent
}

func (s StaticSource) Events(_ context.Context, start, end time.Time) ([]model.CommittedEvent, error) {
	out := make([]model.CommittedEvent, 0)
	for _, e := range s.Items {
		if overlaps(e, start, end) {
			if e.Source == "" {
				e.Source = s.Name
			}
			out = append(out, e)
		}
	}
	return out, nil
}

func overlaps(e model.CommittedEvent, start, end time.Time) bool {
	return e.Start.Before(end) && e.End.After(start)
}

type merged []Source

// Merge combines sources. A failing source does not hide the others: the
// events that could be read are returned together with the joined errors.
func Merge(sources ...Source) Source {
	out := make(merged, 0, len(sources))
	for _, s := range sources {
		if s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (m merged) Events(ctx context.Context, start, end time.Time) ([]model.CommittedEvent, error) {
	var all []model.CommittedEvent
	var errs []error
	for _, s := range m {
		events, err := s.Events(ctx, start, end)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, events...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Start.Before(all[j].Start)
	})
	return all, errors.Join(errs...)
}
