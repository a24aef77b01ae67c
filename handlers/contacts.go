package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/gerry02/agenda-app/datastores"
	"github.com/gerry02/agenda-app/maps"
)

type Contacts struct {
	Store        ds.ContactsStore
	ErrorHandler func(context.Context, error)
}

type CoordinatesModel struct {
	Lat float64 `json:"lat" example:"45.4642" minimum:"-90"  maximum:"90"`
	Lon float64 `json:"lon" example:"9.19"    minimum:"-180" maximum:"180"`
}

type ContactModel struct {
	ID ds.ContactID `json:"id" readOnly:"true"`

	Name        string            `json:"name"                  example:"Marco Rossi"`
	Phone       string            `json:"phone"                 example:"333-1234567"`
	Address     string            `json:"address,omitempty"     example:"Via Roma 123, Milano"`
	Notes       string            `json:"notes,omitempty"       example:"Preferisce incontri mattutini"`
	Coordinates *CoordinatesModel `json:"coordinates,omitempty"`
}

func contactModel(c ds.Contact) ContactModel {
	m := ContactModel{ID: c.ID, Name: c.Name, Phone: c.Phone, Address: c.Address, Notes: c.Notes}
	if c.Coordinates != nil {
		m.Coordinates = &CoordinatesModel{Lat: c.Coordinates.Lat, Lon: c.Coordinates.Lon}
	}
	return m
}

func (m ContactModel) contact() ds.Contact {
	c := ds.Contact{ID: m.ID, Name: m.Name, Phone: m.Phone, Address: m.Address, Notes: m.Notes}
	if m.Coordinates != nil {
		c.Coordinates = &ds.Coordinates{Lat: m.Coordinates.Lat, Lon: m.Coordinates.Lon}
	}
	return c
}

func (h *Contacts) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type ContactsListOutput struct {
	Body []ContactModel
}

func (h *Contacts) list(_ context.Context, input *struct {
	Query string `query:"q" doc:"keep contacts whose name, phone or address contain this, ignoring case"`
}) (*ContactsListOutput, error) {
	contacts := h.Store.FilterContacts(input.Query)

	body := make([]ContactModel, 0, len(contacts))
	for _, contact := range contacts {
		body = append(body, contactModel(contact))
	}

	return &ContactsListOutput{Body: body}, nil
}

func (h *Contacts) RegisterPost(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opErrors(http.StatusUnprocessableEntity, http.StatusInternalServerError),
		opStatus(http.StatusCreated),
	)
}

type ContactsGetOutput struct {
	Body ContactModel
}

func (h *Contacts) post(ctx context.Context, input *struct {
	Body ContactModel
}) (*ContactsGetOutput, error) {
	contact, err := h.Store.AddContact(ctx, input.Body.contact())
	switch {
	case err == nil:
		return &ContactsGetOutput{Body: contactModel(contact)}, nil

	case errors.Is(err, ds.ErrIncompleteDraft):
		return nil, huma.Error422UnprocessableEntity("name and phone are required", err)

	default:
		return nil, err
	}
}

func (h *Contacts) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusInternalServerError),
	)
}

func (h *Contacts) get(_ context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to get"`
}) (*ContactsGetOutput, error) {
	contact, err := h.Store.GetContact(input.ID)
	switch {
	case err == nil:
		return &ContactsGetOutput{Body: contactModel(contact)}, nil

	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)

	default:
		return nil, err
	}
}

func (h *Contacts) RegisterPut(api huma.API) { // called by [huma.AutoRegister]
	huma.Put(api, "/{id}",
		handlerWithErrorHandler(h.put, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusInternalServerError),
	)
}

func (h *Contacts) put(ctx context.Context, input *struct {
	ID   ds.ContactID `path:"id" doc:"ID of the contact to replace"`
	Body ContactModel
}) (*ContactsGetOutput, error) {
	contact, err := h.Store.UpdateContact(ctx, input.ID, input.Body.contact())
	switch {
	case err == nil:
		return &ContactsGetOutput{Body: contactModel(contact)}, nil

	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)

	default:
		return nil, err
	}
}

func (h *Contacts) RegisterDel(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type ContactsDelOutput struct {
	Body struct {
		RemovedAppointments int `json:"removedAppointments" doc:"appointments deleted along with the contact"`
	}
}

func (h *Contacts) del(ctx context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to delete"`
}) (*ContactsDelOutput, error) {
	removed, err := h.Store.DeleteContact(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	out := &ContactsDelOutput{}
	out.Body.RemovedAppointments = removed
	return out, nil
}

func (h *Contacts) RegisterMaps(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{id}/maps",
		handlerWithErrorHandler(h.locate, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusUnprocessableEntity, http.StatusInternalServerError),
	)
}

type MapsOutput struct {
	Body struct {
		URL string `json:"url" format:"uri" doc:"Google Maps link"`
	}
}

func (h *Contacts) locate(_ context.Context, input *struct {
	ID ds.ContactID `path:"id" doc:"ID of the contact to locate"`
}) (*MapsOutput, error) {
	contact, err := h.Store.GetContact(input.ID)
	switch {
	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)
	case err != nil:
		return nil, err
	case strings.TrimSpace(contact.Address) == "":
		return nil, huma.Error422UnprocessableEntity("contact has no address")
	}

	out := &MapsOutput{}
	out.Body.URL = maps.SearchURL(contact.Address)
	return out, nil
}
