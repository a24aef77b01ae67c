package handlers

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	ds "github.com/gerry02/agenda-app/datastores"
)

// Calendar serves the week and dashboard views of the agenda.
type Calendar struct {
	Store interface {
		Week(date string) ([]ds.Day, error)
		Dashboard(date string) ds.Dashboard
	}
	ErrorHandler func(context.Context, error)
}

type EntryModel struct {
	AppointmentID int    `json:"appointmentId"`
	ContactID     int    `json:"contactId"`
	ContactName   string `json:"contactName"`
	Time          string `json:"time"`
	Duration      int    `json:"duration"`
	Notes         string `json:"notes,omitempty"`
}

func entryModels(entries []ds.Entry) []EntryModel {
	out := make([]EntryModel, len(entries))
	for i, e := range entries {
		out[i] = EntryModel{
			AppointmentID: e.ID,
			ContactID:     e.ContactID,
			ContactName:   e.ContactName,
			Time:          e.Time,
			Duration:      e.Duration,
			Notes:         e.Notes,
		}
	}
	return out
}

type DayModel struct {
	Date    string       `json:"date"    format:"date"`
	Weekday string       `json:"weekday" example:"Sunday"`
	Entries []EntryModel `json:"entries"`
}

func (h *Calendar) RegisterWeek(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/calendar/week",
		handlerWithErrorHandler(h.week, h.ErrorHandler),
		opErrors(http.StatusUnprocessableEntity, http.StatusInternalServerError),
	)
}

type CalendarWeekOutput struct {
	Body []DayModel
}

func (h *Calendar) week(_ context.Context, input *struct {
	Date string `query:"date" format:"date" default:"2025-02-27" doc:"any day of the week, which starts on Sunday"`
}) (*CalendarWeekOutput, error) {
	days, err := h.Store.Week(input.Date)
	if err != nil {
		return nil, huma.Error422UnprocessableEntity("invalid date", err)
	}

	body := make([]DayModel, len(days))
	for i, d := range days {
		body[i] = DayModel{Date: d.Date, Weekday: d.Weekday, Entries: entryModels(d.Entries)}
	}
	return &CalendarWeekOutput{Body: body}, nil
}

func (h *Calendar) RegisterDashboard(api huma.API) { // called by [huma.AutoRegister]
	huma.Get(api, "/dashboard",
		handlerWithErrorHandler(h.dashboard, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
}

type DashboardOutput struct {
	Body struct {
		Date             string         `json:"date"             format:"date"`
		Entries          []EntryModel   `json:"entries"`
		Contacts         []ContactModel `json:"contacts"         doc:"first contacts of the agenda"`
		ContactCount     int            `json:"contactCount"`
		AppointmentCount int            `json:"appointmentCount"`
	}
}

func (h *Calendar) dashboard(_ context.Context, input *struct {
	Date string `query:"date" format:"date" default:"2025-02-27" doc:"day to summarize"`
}) (*DashboardOutput, error) {
	d := h.Store.Dashboard(input.Date)

	out := &DashboardOutput{}
	out.Body.Date = d.Date
	out.Body.Entries = entryModels(d.Entries)
	out.Body.Contacts = make([]ContactModel, len(d.Contacts))
	for i, c := range d.Contacts {
		out.Body.Contacts[i] = contactModel(c)
	}
	out.Body.ContactCount = d.ContactCount
	out.Body.AppointmentCount = d.AppointmentCount
	return out, nil
}
