package datastores

import (
	"context"
	"errors"
)

type (
	ContactID     = int
	AppointmentID = int

	Coordinates struct {
		Lat float64 `json:"lat" yaml:"lat"`
		Lon float64 `json:"lon" yaml:"lon"`
	}

	Contact struct {
		ID          ContactID    `json:"id"          yaml:"id"`
		Name        string       `json:"name"        yaml:"name"`
		Phone       string       `json:"phone"       yaml:"phone"`
		Address     string       `json:"address"     yaml:"address"`
		Notes       string       `json:"notes"       yaml:"notes"`
		Coordinates *Coordinates `json:"coordinates" yaml:"coordinates"`
	}

	Appointment struct {
		ID        AppointmentID `json:"id"        yaml:"id"`
		ContactID ContactID     `json:"contactId" yaml:"contactId"`
		Date      string        `json:"date"      yaml:"date"`
		Time      string        `json:"time"      yaml:"time"`
		Duration  int           `json:"duration"  yaml:"duration"`
		Notes     string        `json:"notes"     yaml:"notes"`
	}
)

// UnknownContact is the name reported for appointments whose contact is gone.
const UnknownContact = "Unknown contact"

// DefaultDuration is the length in minutes given to appointments created without one.
const DefaultDuration = 60

type ContactsStore interface {
	AddContact(context.Context, Contact) (Contact, error)
	UpdateContact(context.Context, ContactID, Contact) (Contact, error)
	DeleteContact(context.Context, ContactID) (int, error)
	GetContact(ContactID) (Contact, error)
	FilterContacts(term string) []Contact
}

type AppointmentsStore interface {
	AddAppointment(context.Context, Appointment) (Appointment, error)
	DeleteAppointment(context.Context, AppointmentID) error
	GetAppointment(AppointmentID) (Appointment, error)
	Appointments() []Appointment
	AppointmentsOnDate(date string) []Appointment
	ContactName(ContactID) string
}

var (
	ErrObjectNotFound  = errors.New("store: object not found")
	ErrIncompleteDraft = errors.New("store: required field is blank")
	ErrUnknownContact  = errors.New("store: appointment references an unknown contact")
)

func (c Contact) clone() Contact {
	if c.Coordinates != nil {
		coords := *c.Coordinates
		c.Coordinates = &coords
	}
	return c
}

func cloneContacts(cs []Contact) []Contact {
	out := make([]Contact, len(cs))
	for i, c := range cs {
		out[i] = c.clone()
	}
	return out
}
