// Package itinerary turns a day of appointments into an ordered route and
// measures the driving distance and time between consecutive stops.
package itinerary

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	ds "github.com/gerry02/agenda-app/datastores"
	"github.com/gerry02/agenda-app/geoapify"
)

// Matrix measures the legs from sources[i] to targets[i].
type Matrix interface {
	RouteMatrix(ctx context.Context, sources, targets []geoapify.Location) ([]geoapify.Leg, error)
}

// Schedules provides consistent reads of a day.
type Schedules interface {
	Schedule(date string) ds.Schedule
}

type Options struct {
	Timeout time.Duration `doc:"time allowed to measure a route" default:"5s"`
}

// Stop is an appointment along with the contact it takes place at.
type Stop struct {
	Appointment ds.Appointment
	ContactName string
	Address     string
	Coordinates *ds.Coordinates
}

// Stats are the totals of a route. Zero values with Available unset mean
// the route could not be measured, not that it is empty.
type Stats struct {
	DistanceKm  decimal.Decimal
	DurationMin int64
	Available   bool
}

// Display formats stats the way they are shown to users, e.g. "2.0 km" and "5 min".
func (s Stats) Display() (distance, duration string) {
	return s.DistanceKm.StringFixed(1) + " km", strconv.FormatInt(s.DurationMin, 10) + " min"
}

type Route struct {
	Date    string
	Version uint64
	Stops   []Stop
	Stats   Stats
}

// Addresses lists the non-blank stop addresses in visiting order.
func (r Route) Addresses() []string {
	out := make([]string, 0, len(r.Stops))
	for _, s := range r.Stops {
		if s.Address != "" {
			out = append(out, s.Address)
		}
	}
	return out
}

type Aggregator struct {
	Schedules Schedules
	Matrix    Matrix
	Options   *Options
	Logger    *slog.Logger

	group singleflight.Group
}

// Stops builds the time-ordered stops of a schedule. Stops whose contact
// is gone keep the appointment with the unknown contact name.
func Stops(s ds.Schedule) []Stop {
	stops := make([]Stop, len(s.Appointments))
	for i, ap := range s.Appointments {
		stops[i] = Stop{Appointment: ap, ContactName: ds.UnknownContact}
		if c, ok := s.Contacts[ap.ContactID]; ok {
			stops[i].ContactName = c.Name
			stops[i].Address = c.Address
			stops[i].Coordinates = c.Coordinates
		}
	}
	return stops
}

// Compute returns the route of date with its measured stats. It never
// fails: any problem measuring the route leaves the stats at zero.
// Concurrent calls for the same date and agenda version share one
// measurement.
func (a *Aggregator) Compute(ctx context.Context, date string) Route {
	schedule := a.Schedules.Schedule(date)
	route := Route{Date: date, Version: schedule.Version, Stops: Stops(schedule)}

	var sources []geoapify.Location
	for _, s := range route.Stops {
		if s.Coordinates != nil {
			sources = append(sources, geoapify.Location{Lat: s.Coordinates.Lat, Lon: s.Coordinates.Lon})
		}
	}
	if len(sources) < 2 {
		return route
	}

	key := date + "@" + strconv.FormatUint(schedule.Version, 10)
	ch := a.group.DoChan(key, func() (any, error) {
		// shared by every caller, so it only answers to its own timeout
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout())
		defer cancel()
		return measure(ctx, a.Matrix, sources)
	})

	select {
	case <-ctx.Done():
		a.Logger.LogAttrs(ctx, slog.LevelDebug, "route measurement abandoned", slog.String("date", date))
	case res := <-ch:
		if res.Err != nil {
			a.Logger.LogAttrs(ctx, slog.LevelWarn, "route unavailable",
				slog.String("date", date), slog.Int("stops", len(sources)), slog.Any("err", res.Err))
			break
		}
		route.Stats = res.Val.(Stats) //nolint: errcheck // always Stats
	}
	return route
}

func (a *Aggregator) timeout() time.Duration {
	if a.Options == nil || a.Options.Timeout <= 0 {
		return 5 * time.Second //nolint: mnd // default timeout
	}
	return a.Options.Timeout
}

// measure sums the legs between consecutive locations.
func measure(ctx context.Context, matrix Matrix, locations []geoapify.Location) (Stats, error) {
	legs, err := matrix.RouteMatrix(ctx, locations[:len(locations)-1], locations[1:])
	if err != nil {
		return Stats{}, err
	}
	if len(legs) != len(locations)-1 {
		return Stats{}, geoapify.ErrMalformedResponse
	}

	meters, seconds := decimal.Zero, decimal.Zero
	for _, leg := range legs {
		meters = meters.Add(decimal.NewFromFloat(leg.Meters))
		seconds = seconds.Add(decimal.NewFromFloat(leg.Seconds))
	}
	return Stats{
		DistanceKm:  meters.Div(decimal.NewFromInt(1000)).Round(1), //nolint: mnd // meters per km
		DurationMin: seconds.Div(decimal.NewFromInt(60)).Round(0).IntPart(), //nolint: mnd // seconds per minute
		Available:   true,
	}, nil
}
