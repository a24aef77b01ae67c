package api

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/VictoriaMetrics/metrics"

	"github.com/gerry02/agenda-app/datastores"
	"github.com/gerry02/agenda-app/geoapify"
	"github.com/gerry02/agenda-app/itinerary"
	"github.com/gerry02/agenda-app/kvstores"
	"github.com/gerry02/agenda-app/session"
)

// Services are the components the API and the CLI commands work with.
type Services struct {
	Agenda     *datastores.Agenda
	Geoapify   *geoapify.Client
	Aggregator *itinerary.Aggregator
	Session    *session.Controller
	Metrics    *metrics.Set

	kv kvstores.Store
}

// OpenServices opens the configured store and builds every service on top
// of it. The session controller is not started, see [Services.Run].
func OpenServices(
	ctx context.Context,
	storeOptions *kvstores.Options,
	geoapifyOptions *geoapify.Options,
	routeOptions *itinerary.Options,
	logger *slog.Logger,
) (*Services, error) {
	kv, err := kvstores.Open(ctx, storeOptions)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", storeOptions.Driver, err)
	}
	logger.Info("store opened", slog.String("driver", storeOptions.Driver))

	s := &Services{Metrics: metrics.NewSet(), kv: kv}
	s.Agenda = datastores.OpenAgenda(ctx,
		&datastores.Adapter{KV: kv, Logger: logger.With("component", "store")},
		logger.With("component", "agenda"),
	)
	s.Geoapify = geoapify.New(geoapifyOptions, s.Metrics, logger.With("component", "geoapify"))
	if geoapifyOptions.APIKey == "" {
		logger.Warn("no geoapify API key, routes will not be measured")
	}
	s.Aggregator = &itinerary.Aggregator{
		Schedules: s.Agenda,
		Matrix:    s.Geoapify,
		Options:   routeOptions,
		Logger:    logger.With("component", "itinerary"),
	}
	s.Session = session.New(s.Aggregator, logger.With("component", "session"))
	s.Agenda.OnChange(s.Session.DataChanged)
	return s, nil
}

// Run runs the session controller until ctx is done.
func (s *Services) Run(ctx context.Context) { s.Session.Run(ctx) }

func (s *Services) Close() error { return s.kv.Close() }
