// Package geo estimates travel time between task locations.
package geo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"googlemaps.github.io/maps"

	"github.com/sandeepkv93/dayplan/internal/apperr"
	"github.com/sandeepkv93/dayplan/internal/timemath"
)

type RouteQuery struct {
	Origin      string
	Destination string
	Mode        string
	// ArriveBy, when set, is used to compute DepartureLabel.
	ArriveBy time.Time
}

type RouteEstimate struct {
	Minutes        int
	DepartureLabel string
}

type RouteClient interface {
	EstimateDuration(ctx context.Context, q RouteQuery) (RouteEstimate, error)
}

func (q RouteQuery) estimate(minutes int) RouteEstimate {
	est := RouteEstimate{Minutes: minutes}
	if !q.ArriveBy.IsZero() {
		est.DepartureLabel = timemath.FormatClock(q.ArriveBy.Add(-time.Duration(minutes) * time.Minute))
	}
	return est
}

type matrixAPI interface {
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
}

// DistanceMatrixClient asks the Google Distance Matrix API for one
// origin/destination pair at a time.
type DistanceMatrixClient struct {
	api    matrixAPI
	logger *slog.Logger
}

func NewDistanceMatrixClient(apiKey string, logger *slog.Logger) (*DistanceMatrixClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, apperr.New(apperr.KindConfiguration, "geo.NewDistanceMatrixClient", "maps api key is not set")
	}
	c, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfiguration, "geo.NewDistanceMatrixClient", err)
	}
	return newDistanceMatrixClient(c, logger), nil
}

func newDistanceMatrixClient(api matrixAPI, logger *slog.Logger) *DistanceMatrixClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &DistanceMatrixClient{api: api, logger: logger.With("component", "distance_matrix")}
}

func (c *DistanceMatrixClient) EstimateDuration(ctx context.Context, q RouteQuery) (RouteEstimate, error) {
	const op = "geo.EstimateDuration"
	if strings.TrimSpace(q.Origin) == "" || strings.TrimSpace(q.Destination) == "" {
		return RouteEstimate{}, apperr.New(apperr.KindValidation, op, "origin and destination are required")
	}
	mode, err := travelMode(q.Mode)
	if err != nil {
		return RouteEstimate{}, apperr.Wrap(apperr.KindValidation, op, err)
	}
	req := &maps.DistanceMatrixRequest{
		Origins:      []string{q.Origin},
		Destinations: []string{q.Destination},
		Mode:         mode,
	}
	if mode == maps.TravelModeDriving || mode == maps.TravelModeTransit {
		req.DepartureTime = "now"
	}

	resp, err := c.api.DistanceMatrix(ctx, req)
	if err != nil {
		return RouteEstimate{}, classify(op, err)
	}
	if len(resp.Rows) == 0 || len(resp.Rows[0].Elements) == 0 {
		return RouteEstimate{}, apperr.New(apperr.KindUpstream, op, "empty distance matrix")
	}
	el := resp.Rows[0].Elements[0]
	if el.Status != "OK" {
		return RouteEstimate{}, apperr.New(apperr.KindUpstream, op, fmt.Sprintf("route status %s", el.Status))
	}
	d := el.Duration
	if el.DurationInTraffic > 0 {
		d = el.DurationInTraffic
	}
	minutes := int((d + time.Minute - 1) / time.Minute)
	c.logger.Debug("route estimated", "origin", q.Origin, "destination", q.Destination, "mode", mode, "minutes", minutes)
	return q.estimate(minutes), nil
}

func travelMode(raw string) (maps.Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "driving", "drive", "car":
		return maps.TravelModeDriving, nil
	case "walking", "walk":
		return maps.TravelModeWalking, nil
	case "bicycling", "bike", "cycling":
		return maps.TravelModeBicycling, nil
	case "transit", "bus", "train":
		return maps.TravelModeTransit, nil
	default:
		return "", fmt.Errorf("unknown transport mode %q", raw)
	}
}

func classify(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return apperr.Wrap(apperr.KindTransport, op, err)
	}
	if strings.Contains(err.Error(), "INVALID_REQUEST") {
		return apperr.Wrap(apperr.KindValidation, op, err)
	}
	return apperr.Wrap(apperr.KindUpstream, op, err)
}
