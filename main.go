package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/spf13/cobra"

	"github.com/gerry02/agenda-app/cli/api"
	"github.com/gerry02/agenda-app/cli/logger"
	"github.com/gerry02/agenda-app/geoapify"
	"github.com/gerry02/agenda-app/itinerary"
	"github.com/gerry02/agenda-app/kvstores"
	"github.com/gerry02/agenda-app/maps"
	"github.com/gerry02/agenda-app/session"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version  = "dev"
	revision = "unknown"
	created  = "unknown"
)

const title = "Agenda API"

// Options for the CLI. Each flag can also be set from a SERVICE_* env var.
type Options struct {
	Logger   logger.Options
	Server   api.ServerOptions
	Router   api.RouterOptions
	Store    kvstores.Options
	Geoapify geoapify.Options
	Route    itinerary.Options
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, options *Options) {
		logger := logger.New(&options.Logger)
		ctx, cancel := context.WithCancel(context.Background())

		var (
			services *api.Services
			srv      *http.Server
		)
		hooks.OnStart(func() {
			var err error
			services, err = api.OpenServices(ctx, &options.Store, &options.Geoapify, &options.Route, logger)
			if err != nil {
				logger.Error("could not open services", "err", err)
				os.Exit(1)
			}
			go services.Run(ctx)

			srv = api.NewServer(&options.Server,
				api.NewRouter(&options.Router, title, version, revision, created, services, logger),
				logger)
			logger.Info("server listening", "addr", srv.Addr, "version", version)
			err = srv.ListenAndServe()
			if !errors.Is(err, http.ErrServerClosed) {
				logger.Error("failed to listen and serve", "err", err)
			} else {
				logger.Info("server closed")
			}
		})
		hooks.OnStop(func() {
			defer cancel()
			if srv == nil {
				return
			}
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Minute)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("could not shutdown the server", "err", err)
			}
			if err := services.Close(); err != nil {
				logger.Warn("could not close the store", "err", err)
			}
		})
	})

	var open bool
	route := &cobra.Command{
		Use:   "route [date]",
		Short: "Print the itinerary of a day",
		Long:  "Print the appointments of a day in time order with the total distance and driving time.",
		Args:  cobra.MaximumNArgs(1),
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, options *Options) {
			date := session.DefaultDate
			if len(args) > 0 {
				date = args[0]
			}
			var opener maps.Opener
			if open {
				opener = maps.BrowserOpener{}
			}
			if err := printRoute(cmd.Context(), cmd.OutOrStdout(), options, date, opener); err != nil {
				fmt.Fprintln(cmd.ErrOrStderr(), "error:", err)
				os.Exit(1)
			}
		}),
	}
	route.Flags().BoolVar(&open, "open", false, "open the route in the browser")
	cli.Root().AddCommand(route)

	cli.Run()
}

func printRoute(ctx context.Context, w io.Writer, options *Options, date string, opener maps.Opener) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("invalid date %q", date)
	}
	logger := logger.New(&options.Logger)
	services, err := api.OpenServices(ctx, &options.Store, &options.Geoapify, &options.Route, logger)
	if err != nil {
		return err
	}
	defer services.Close()

	route := services.Aggregator.Compute(ctx, date)
	fmt.Fprintf(w, "Route for %s\n", route.Date)
	if len(route.Stops) == 0 {
		fmt.Fprintln(w, "  no appointments")
	}
	for i, stop := range route.Stops {
		fmt.Fprintf(w, "  %d. %s  %s", i+1, stop.Appointment.Time, stop.ContactName)
		if stop.Address != "" {
			fmt.Fprintf(w, ", %s", stop.Address)
		}
		fmt.Fprintln(w)
	}
	if route.Stats.Available {
		distance, duration := route.Stats.Display()
		fmt.Fprintf(w, "Total: %s, %s\n", distance, duration)
	} else {
		fmt.Fprintln(w, "Total: unavailable")
	}

	url := maps.RouteURL(route.Addresses())
	if url == "" {
		return nil
	}
	fmt.Fprintln(w, url)
	if opener != nil {
		return opener.Open(url)
	}
	return nil
}
