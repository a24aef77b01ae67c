// Package router mounts the API operations and the probe endpoints on one mux.
package router

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
)

// Opt configures the API, or a group of it, once created.
type Opt func(huma.API)

func New(
	title, version string,
	readiness http.HandlerFunc,
	writeMetrics http.HandlerFunc,
	opts ...Opt,
) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/liveness", func(http.ResponseWriter, *http.Request) {})
	mux.HandleFunc("/readiness", readiness)
	mux.HandleFunc("/metrics", writeMetrics)

	api := humago.New(mux, huma.DefaultConfig(title, version))
	for _, opt := range opts {
		opt(api)
	}

	return mux
}

// OptGroup applies opts to a group mounted at prefix.
func OptGroup(prefix string, opts ...Opt) Opt {
	return func(api huma.API) {
		group := huma.NewGroup(api, prefix)
		for _, opt := range opts {
			opt(group)
		}
	}
}

// OptAutoRegister registers the operations of every handler with [huma.AutoRegister].
func OptAutoRegister(handlers ...any) Opt {
	return func(api huma.API) {
		for _, h := range handlers {
			huma.AutoRegister(api, h)
		}
	}
}

// OptUseMiddleware adds middlewares to every operation registered after it.
func OptUseMiddleware(middlewares ...func(huma.Context, func(huma.Context))) Opt {
	return func(api huma.API) { api.UseMiddleware(middlewares...) }
}
