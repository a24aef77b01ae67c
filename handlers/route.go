package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gerry02/agenda-app/itinerary"
	"github.com/gerry02/agenda-app/maps"
)

type Route struct {
	Aggregator interface {
		Compute(ctx context.Context, date string) itinerary.Route
	}
	ErrorHandler func(context.Context, error)
}

type StopModel struct {
	AppointmentID int               `json:"appointmentId"`
	ContactID     int               `json:"contactId"`
	ContactName   string            `json:"contactName"`
	Time          string            `json:"time"`
	Duration      int               `json:"duration"`
	Notes         string            `json:"notes,omitempty"`
	Address       string            `json:"address"`
	Coordinates   *CoordinatesModel `json:"coordinates,omitempty"`
}

type StatsModel struct {
	DistanceKm  float64 `json:"distanceKm"  doc:"total driving distance, rounded to 0.1 km"`
	DurationMin int64   `json:"durationMin" doc:"total driving time, rounded to the minute"`
	Distance    string  `json:"distance"    example:"2.0 km"`
	Duration    string  `json:"duration"    example:"5 min"`
	Available   bool    `json:"available"   doc:"false when the route could not be measured, totals are then zero"`
}

type RouteModel struct {
	Date    string      `json:"date"    format:"date"`
	Stops   []StopModel `json:"stops"`
	Stats   StatsModel  `json:"stats"`
	MapsURL string      `json:"mapsUrl" doc:"Google Maps directions through every stop, empty without stops"`
}

func routeModel(r itinerary.Route) RouteModel {
	stops := make([]StopModel, len(r.Stops))
	for i, s := range r.Stops {
		stops[i] = StopModel{
			AppointmentID: s.Appointment.ID,
			ContactID:     s.Appointment.ContactID,
			ContactName:   s.ContactName,
			Time:          s.Appointment.Time,
			Duration:      s.Appointment.Duration,
			Notes:         s.Appointment.Notes,
			Address:       s.Address,
		}
		if s.Coordinates != nil {
			stops[i].Coordinates = &CoordinatesModel{Lat: s.Coordinates.Lat, Lon: s.Coordinates.Lon}
		}
	}

	distance, duration := r.Stats.Display()
	return RouteModel{
		Date:  r.Date,
		Stops: stops,
		Stats: StatsModel{
			DistanceKm:  r.Stats.DistanceKm.InexactFloat64(),
			DurationMin: r.Stats.DurationMin,
			Distance:    distance,
			Duration:    duration,
			Available:   r.Stats.Available,
		},
		MapsURL: maps.RouteURL(r.Addresses()),
	}
}

func (h *Route) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{date}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusUnprocessableEntity, http.StatusInternalServerError),
	)
}

type RouteGetOutput struct {
	Body RouteModel
}

func (h *Route) get(ctx context.Context, input *struct {
	Date string `path:"date" format:"date" doc:"day of the route" example:"2025-02-27"`
}) (*RouteGetOutput, error) {
	return &RouteGetOutput{Body: routeModel(h.Aggregator.Compute(ctx, input.Date))}, nil
}
