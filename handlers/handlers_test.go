package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ds "github.com/gerry02/agenda-app/datastores"
	"github.com/gerry02/agenda-app/geoapify"
	"github.com/gerry02/agenda-app/itinerary"
	"github.com/gerry02/agenda-app/kvstores"
	"github.com/gerry02/agenda-app/session"
)

type aggregatorFunc func(ctx context.Context, date string) itinerary.Route

func (f aggregatorFunc) Compute(ctx context.Context, date string) itinerary.Route { return f(ctx, date) }

type autocompleteFunc func(ctx context.Context, text string, limit int) ([]geoapify.Place, error)

func (f autocompleteFunc) Autocomplete(ctx context.Context, text string, limit int) ([]geoapify.Place, error) {
	return f(ctx, text, limit)
}

type fixture struct {
	api    humatest.TestAPI
	agenda *ds.Agenda

	route    aggregatorFunc
	geocoder autocompleteFunc
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	f := &fixture{
		agenda: ds.OpenAgenda(context.Background(), &ds.Adapter{KV: kvstores.NewMemory(0), Logger: logger}, logger),
		route: func(_ context.Context, date string) itinerary.Route {
			return itinerary.Route{Date: date}
		},
		geocoder: func(context.Context, string, int) ([]geoapify.Place, error) {
			return nil, geoapify.ErrMissingKey
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	controller := session.New(aggregatorFunc(func(ctx context.Context, date string) itinerary.Route {
		return f.route(ctx, date)
	}), logger)
	go controller.Run(ctx)

	var api huma.API
	_, f.api = humatest.New(t)
	api = f.api
	huma.AutoRegister(huma.NewGroup(api, "/contacts"), &Contacts{Store: f.agenda})
	huma.AutoRegister(huma.NewGroup(api, "/appointments"), &Appointments{Store: f.agenda})
	huma.AutoRegister(huma.NewGroup(api, "/route"), &Route{Aggregator: aggregatorFunc(func(ctx context.Context, date string) itinerary.Route {
		return f.route(ctx, date)
	})})
	huma.AutoRegister(api, &Calendar{Store: f.agenda})
	huma.AutoRegister(huma.NewGroup(api, "/geocode"), &Geocode{Client: autocompleteFunc(func(ctx context.Context, text string, limit int) ([]geoapify.Place, error) {
		return f.geocoder(ctx, text, limit)
	})})
	huma.AutoRegister(huma.NewGroup(api, "/session"), &Session{Controller: controller, Contacts: f.agenda})
	return f
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v))
	return v
}

func TestContacts(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Get("/contacts/?q=MILANO")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Len(t, decode[[]ContactModel](t, resp.Body.Bytes()), 3)

	resp = f.api.Get("/contacts/?q=garibaldi")
	list := decode[[]ContactModel](t, resp.Body.Bytes())
	require.Len(t, list, 1)
	assert.Equal(t, "Laura Bianchi", list[0].Name)

	resp = f.api.Post("/contacts/", map[string]any{"name": "Anna Neri", "phone": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = f.api.Post("/contacts/", map[string]any{
		"name":        "Anna Neri",
		"phone":       "333-0000000",
		"address":     "Via Dante 1, Milano",
		"coordinates": map[string]any{"lat": 45.46, "lon": 9.18},
	})
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decode[ContactModel](t, resp.Body.Bytes())
	assert.Equal(t, 4, created.ID)

	resp = f.api.Put("/contacts/4", map[string]any{"name": "Anna N.", "phone": "333-0000000"})
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Nil(t, decode[ContactModel](t, resp.Body.Bytes()).Coordinates)

	resp = f.api.Get("/contacts/4/maps")
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code, "address was dropped by the update")

	resp = f.api.Get("/contacts/1/maps")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Contains(t, resp.Body.String(), "maps/search/?api=1")

	resp = f.api.Get("/contacts/42")
	assert.Equal(t, http.StatusNotFound, resp.Code)
	resp = f.api.Put("/contacts/42", map[string]any{"name": "x", "phone": "y"})
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestContacts_DeleteCascades(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Delete("/contacts/1")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.JSONEq(t, `{"removedAppointments":1}`, resp.Body.String())

	resp = f.api.Get("/appointments/")
	for _, ap := range decode[[]AppointmentModel](t, resp.Body.Bytes()) {
		assert.NotEqual(t, 1, ap.ContactID)
	}
	assert.Equal(t, http.StatusNotFound, f.api.Get("/contacts/1").Code)
}

func TestAppointments(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Post("/appointments/", map[string]any{"contactId": 3, "date": "2025-02-27", "time": "07:30"})
	require.Equal(t, http.StatusCreated, resp.Code)
	created := decode[AppointmentModel](t, resp.Body.Bytes())
	assert.Equal(t, ds.DefaultDuration, created.Duration)
	assert.Equal(t, "Giovanni Verdi", created.ContactName)

	resp = f.api.Get("/appointments/?date=2025-02-27")
	require.Equal(t, http.StatusOK, resp.Code)
	list := decode[[]AppointmentModel](t, resp.Body.Bytes())
	require.Len(t, list, 3)
	assert.Equal(t, []string{"07:30", "09:00", "14:00"}, []string{list[0].Time, list[1].Time, list[2].Time})

	resp = f.api.Post("/appointments/", map[string]any{"contactId": 42, "date": "2025-02-27", "time": "07:30"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	resp = f.api.Post("/appointments/", map[string]any{"contactId": 1, "date": "2025-02-27", "time": "7pm"})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.Code)

	resp = f.api.Get("/appointments/" + "3")
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, "2025-02-28", decode[AppointmentModel](t, resp.Body.Bytes()).Date)

	assert.Equal(t, http.StatusNoContent, f.api.Delete("/appointments/3").Code)
	assert.Equal(t, http.StatusNotFound, f.api.Get("/appointments/3").Code)
}

func TestRoute(t *testing.T) {
	f := newFixture(t)
	f.route = func(_ context.Context, date string) itinerary.Route {
		return itinerary.Route{
			Date: date,
			Stops: []itinerary.Stop{
				{Appointment: ds.Appointment{ID: 1, ContactID: 1, Time: "09:00"}, ContactName: "Marco Rossi", Address: "Via Roma 123, Milano", Coordinates: &ds.Coordinates{Lat: 45.4642, Lon: 9.19}},
				{Appointment: ds.Appointment{ID: 2, ContactID: 2, Time: "14:00"}, ContactName: "Laura Bianchi", Address: "Via Garibaldi 45, Milano"},
			},
			Stats: itinerary.Stats{DistanceKm: decimal.RequireFromString("2.0"), DurationMin: 5, Available: true},
		}
	}

	resp := f.api.Get("/route/2025-02-27")
	require.Equal(t, http.StatusOK, resp.Code)
	route := decode[RouteModel](t, resp.Body.Bytes())
	assert.Equal(t, "2.0 km", route.Stats.Distance)
	assert.Equal(t, "5 min", route.Stats.Duration)
	assert.InDelta(t, 2.0, route.Stats.DistanceKm, 1e-9)
	require.Len(t, route.Stops, 2)
	assert.Nil(t, route.Stops[1].Coordinates)
	assert.Contains(t, route.MapsURL, "destination=Via+Garibaldi+45%2C+Milano")

	assert.Equal(t, http.StatusUnprocessableEntity, f.api.Get("/route/tomorrow").Code)
}

func TestCalendar(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Get("/calendar/week?date=2025-02-27")
	require.Equal(t, http.StatusOK, resp.Code)
	week := decode[[]DayModel](t, resp.Body.Bytes())
	require.Len(t, week, 7)
	assert.Equal(t, "Sunday", week[0].Weekday)
	assert.Len(t, week[4].Entries, 2)

	resp = f.api.Get("/dashboard")
	require.Equal(t, http.StatusOK, resp.Code)
	var dashboard struct {
		Date         string         `json:"date"`
		Entries      []EntryModel   `json:"entries"`
		Contacts     []ContactModel `json:"contacts"`
		ContactCount int            `json:"contactCount"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &dashboard))
	assert.Equal(t, session.DefaultDate, dashboard.Date)
	assert.Len(t, dashboard.Entries, 2)
	assert.Equal(t, 3, dashboard.ContactCount)
}

func TestGeocode(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusServiceUnavailable, f.api.Get("/geocode/?text=via").Code)

	f.geocoder = func(context.Context, string, int) ([]geoapify.Place, error) {
		return nil, errors.New("connection reset")
	}
	assert.Equal(t, http.StatusBadGateway, f.api.Get("/geocode/?text=via").Code)

	f.geocoder = func(_ context.Context, text string, limit int) ([]geoapify.Place, error) {
		assert.Equal(t, "via roma", text)
		assert.Equal(t, 5, limit)
		return []geoapify.Place{{Address: "Via Roma 123, Milano", Location: geoapify.Location{Lat: 45.4642, Lon: 9.19}}}, nil
	}
	resp := f.api.Get("/geocode/?text=via%20roma")
	require.Equal(t, http.StatusOK, resp.Code)
	places := decode[[]PlaceModel](t, resp.Body.Bytes())
	require.Len(t, places, 1)
	assert.InDelta(t, 45.4642, places[0].Coordinates.Lat, 1e-9)
}

func TestSession(t *testing.T) {
	f := newFixture(t)

	resp := f.api.Get("/session/")
	require.Equal(t, http.StatusOK, resp.Code)
	s := decode[SessionModel](t, resp.Body.Bytes())
	assert.Equal(t, "dashboard", s.View)
	assert.Len(t, s.Contacts, 3)

	resp = f.api.Patch("/session/", map[string]any{"search": "rossi", "date": "2025-02-28"})
	require.Equal(t, http.StatusOK, resp.Code)
	s = decode[SessionModel](t, resp.Body.Bytes())
	assert.Equal(t, "2025-02-28", s.Date)
	require.Len(t, s.Contacts, 1)
	assert.Equal(t, "Marco Rossi", s.Contacts[0].Name)

	assert.Equal(t, http.StatusUnprocessableEntity, f.api.Patch("/session/", map[string]any{"view": "map"}).Code)

	resp = f.api.Patch("/session/", map[string]any{"view": "route"})
	require.Equal(t, http.StatusOK, resp.Code)
	require.Eventually(t, func() bool {
		s := decode[SessionModel](t, f.api.Get("/session/").Body.Bytes())
		return s.Route != nil && s.Route.Date == "2025-02-28"
	}, time.Second, 5*time.Millisecond)
}
