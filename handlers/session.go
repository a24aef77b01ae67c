package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/gerry02/agenda-app/datastores"
	"github.com/gerry02/agenda-app/session"
)

type Session struct {
	Controller interface {
		Snapshot(ctx context.Context) (session.State, error)
		Update(ctx context.Context, patch session.Patch) (session.State, error)
	}
	Contacts interface {
		FilterContacts(term string) []ds.Contact
	}
	ErrorHandler func(context.Context, error)
}

type SessionModel struct {
	View            string         `json:"view"            enum:"dashboard,contacts,calendar,route"`
	Date            string         `json:"date"            format:"date"`
	Search          string         `json:"search"`
	Contacts        []ContactModel `json:"contacts"        doc:"contacts matching search"`
	Route           *RouteModel    `json:"route,omitempty" doc:"last route measured for date"`
	RoutePending    bool           `json:"routePending"`
	RouteGeneration uint64         `json:"routeGeneration"`
}

func (h *Session) model(s session.State) SessionModel {
	contacts := h.Contacts.FilterContacts(s.Search)
	m := SessionModel{
		View:            string(s.View),
		Date:            s.Date,
		Search:          s.Search,
		Contacts:        make([]ContactModel, len(contacts)),
		RoutePending:    s.RoutePending,
		RouteGeneration: s.RouteGeneration,
	}
	for i, c := range contacts {
		m.Contacts[i] = contactModel(c)
	}
	if s.Route != nil {
		route := routeModel(*s.Route)
		m.Route = &route
	}
	return m
}

type SessionOutput struct {
	Body SessionModel
}

func (h *Session) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusServiceUnavailable, http.StatusInternalServerError),
	)
}

func (h *Session) get(ctx context.Context, _ *struct{}) (*SessionOutput, error) {
	s, err := h.Controller.Snapshot(ctx)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: h.model(s)}, nil
}

func (h *Session) RegisterPatch(api huma.API) { // called by [huma.AutoRegister]
	huma.Patch(api, "/",
		handlerWithErrorHandler(h.patch, h.ErrorHandler),
		opErrors(http.StatusUnprocessableEntity, http.StatusServiceUnavailable, http.StatusInternalServerError),
	)
}

func (h *Session) patch(ctx context.Context, input *struct {
	Body struct {
		View   *string `json:"view,omitempty"   enum:"dashboard,contacts,calendar,route"`
		Date   *string `json:"date,omitempty"   format:"date"`
		Search *string `json:"search,omitempty"`
	}
}) (*SessionOutput, error) {
	patch := session.Patch{Date: input.Body.Date, Search: input.Body.Search}
	if input.Body.View != nil {
		view := session.View(*input.Body.View)
		patch.View = &view
	}

	s, err := h.Controller.Update(ctx, patch)
	if err != nil {
		return nil, sessionError(err)
	}
	return &SessionOutput{Body: h.model(s)}, nil
}

func sessionError(err error) error {
	switch {
	case errors.Is(err, session.ErrInvalidView), errors.Is(err, session.ErrInvalidDate):
		return huma.Error422UnprocessableEntity(err.Error(), err)
	case errors.Is(err, session.ErrStopped):
		return huma.Error503ServiceUnavailable("session unavailable", err)
	default:
		return err
	}
}
