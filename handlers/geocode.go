package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/gerry02/agenda-app/geoapify"
)

type Geocode struct {
	Client interface {
		Autocomplete(ctx context.Context, text string, limit int) ([]geoapify.Place, error)
	}
	ErrorHandler func(context.Context, error)
}

type PlaceModel struct {
	Address     string           `json:"address"     example:"Via Roma 123, Milano"`
	Coordinates CoordinatesModel `json:"coordinates"`
}

func (h *Geocode) RegisterAutocomplete(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.autocomplete, h.ErrorHandler),
		opErrors(http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusInternalServerError),
	)
}

type GeocodeOutput struct {
	Body []PlaceModel
}

func (h *Geocode) autocomplete(ctx context.Context, input *struct {
	Text  string `query:"text"  doc:"partial address"                  example:"via roma milano"`
	Limit int    `query:"limit" doc:"maximum number of suggestions" default:"5" minimum:"1" maximum:"20"`
}) (*GeocodeOutput, error) {
	places, err := h.Client.Autocomplete(ctx, input.Text, input.Limit)
	switch {
	case err == nil:
	case errors.Is(err, geoapify.ErrMissingKey), errors.Is(err, geoapify.ErrCircuitOpen):
		return nil, huma.Error503ServiceUnavailable("address lookup unavailable", err)
	default:
		return nil, huma.Error502BadGateway("address lookup failed", err)
	}

	body := make([]PlaceModel, len(places))
	for i, p := range places {
		body[i] = PlaceModel{Address: p.Address, Coordinates: CoordinatesModel{Lat: p.Lat, Lon: p.Lon}}
	}
	return &GeocodeOutput{Body: body}, nil
}
