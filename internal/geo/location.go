package geo

import (
	"context"
	"errors"
	"time"

	"github.com/sandeepkv93/dayplan/internal/apperr"
)

var ErrLocationTimeout = errors.New("geo: location fetch timed out")

// LocationProvider reports where the user is now.
type LocationProvider interface {
	CurrentLocation(ctx context.Context) (string, error)
}

// StaticLocation always reports the same place.
type StaticLocation string

func (s StaticLocation) CurrentLocation(context.Context) (string, error) {
	return string(s), nil
}

// FetchLocation asks p for the current location and gives up after timeout.
// A provider that ignores its context still cannot hold the caller past the
// deadline.
func FetchLocation(ctx context.Context, p LocationProvider, timeout time.Duration) (string, error) {
	if p == nil {
		return "", apperr.New(apperr.KindConfiguration, "geo.FetchLocation", "no location provider")
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		loc string
		err error
	}
	done := make(chan result, 1)
	go func() {
		loc, err := p.CurrentLocation(ctx)
		done <- result{loc, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			if errors.Is(r.err, context.DeadlineExceeded) {
				return "", apperr.Wrap(apperr.KindTransport, "geo.FetchLocation", ErrLocationTimeout)
			}
			return "", apperr.Wrap(apperr.KindTransport, "geo.FetchLocation", r.err)
		}
		return r.loc, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", apperr.Wrap(apperr.KindTransport, "geo.FetchLocation", ErrLocationTimeout)
		}
		return "", apperr.Wrap(apperr.KindTransport, "geo.FetchLocation", ctx.Err())
	}
}
