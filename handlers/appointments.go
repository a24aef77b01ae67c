package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/gerry02/agenda-app/datastores"
)

type Appointments struct {
	Store        ds.AppointmentsStore
	ErrorHandler func(context.Context, error)
}

type AppointmentModel struct {
	ID ds.AppointmentID `json:"id" readOnly:"true"`

	ContactID ds.ContactID `json:"contactId"          example:"1"`
	Date      string       `json:"date"               example:"2025-02-27" format:"date"`
	Time      string       `json:"time"               example:"09:00"      pattern:"^([01][0-9]|2[0-3]):[0-5][0-9]$"`
	Duration  int          `json:"duration,omitempty" example:"60"         minimum:"0" doc:"minutes, 60 when omitted"`
	Notes     string       `json:"notes,omitempty"    example:"Presentazione nuovo catalogo"`

	ContactName string `json:"contactName" readOnly:"true"`
}

func (h *Appointments) model(ap ds.Appointment) AppointmentModel {
	return AppointmentModel{
		ID:          ap.ID,
		ContactID:   ap.ContactID,
		Date:        ap.Date,
		Time:        ap.Time,
		Duration:    ap.Duration,
		Notes:       ap.Notes,
		ContactName: h.Store.ContactName(ap.ContactID),
	}
}

func (h *Appointments) RegisterList(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type AppointmentsListOutput struct {
	Body []AppointmentModel
}

func (h *Appointments) list(_ context.Context, input *struct {
	Date string `query:"date" format:"date" doc:"only appointments on this day, sorted by time"`
}) (*AppointmentsListOutput, error) {
	var appointments []ds.Appointment
	if input.Date == "" {
		appointments = h.Store.Appointments()
	} else {
		appointments = h.Store.AppointmentsOnDate(input.Date)
	}

	body := make([]AppointmentModel, 0, len(appointments))
	for _, ap := range appointments {
		body = append(body, h.model(ap))
	}

	return &AppointmentsListOutput{Body: body}, nil
}

func (h *Appointments) RegisterPost(api huma.API) { // called by [huma.AutoRegister]
	huma.Post(api, "/",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opErrors(http.StatusUnprocessableEntity, http.StatusInternalServerError),
		opStatus(http.StatusCreated),
	)
}

type AppointmentsGetOutput struct {
	Body AppointmentModel
}

func (h *Appointments) post(ctx context.Context, input *struct {
	Body AppointmentModel
}) (*AppointmentsGetOutput, error) {
	ap, err := h.Store.AddAppointment(ctx, ds.Appointment{
		ContactID: input.Body.ContactID,
		Date:      input.Body.Date,
		Time:      input.Body.Time,
		Duration:  input.Body.Duration,
		Notes:     input.Body.Notes,
	})
	switch {
	case err == nil:
		return &AppointmentsGetOutput{Body: h.model(ap)}, nil

	case errors.Is(err, ds.ErrIncompleteDraft):
		return nil, huma.Error422UnprocessableEntity("contact, date and time are required", err)

	case errors.Is(err, ds.ErrUnknownContact):
		return nil, huma.Error422UnprocessableEntity("contact does not exist", err)

	default:
		return nil, err
	}
}

func (h *Appointments) RegisterGet(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/{id}",
		handlerWithErrorHandler(h.get, h.ErrorHandler),
		opErrors(http.StatusNotFound, http.StatusInternalServerError),
	)
}

func (h *Appointments) get(_ context.Context, input *struct {
	ID ds.AppointmentID `path:"id" doc:"ID of the appointment to get"`
}) (*AppointmentsGetOutput, error) {
	ap, err := h.Store.GetAppointment(input.ID)
	switch {
	case err == nil:
		return &AppointmentsGetOutput{Body: h.model(ap)}, nil

	case errors.Is(err, ds.ErrObjectNotFound):
		return nil, huma.Error404NotFound("id not found", err)

	default:
		return nil, err
	}
}

func (h *Appointments) RegisterDel(api huma.API) { // called by [huma.AutoRegister]
	huma.Delete(api, "/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

func (h *Appointments) del(ctx context.Context, input *struct {
	ID ds.AppointmentID `path:"id" doc:"ID of the appointment to delete"`
}) (*struct{}, error) {
	return nil, h.Store.DeleteAppointment(ctx, input.ID)
}
