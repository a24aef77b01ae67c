package datastores

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// FilterContacts returns the contacts whose name, phone or address contain
// term, ignoring case, in collection order. A blank term matches all.
func (a *Agenda) FilterContacts(term string) []Contact {
	term = strings.ToLower(strings.TrimSpace(term))

	a.mu.Lock()
	defer a.mu.Unlock()
	if term == "" {
		return cloneContacts(a.contacts)
	}
	out := []Contact{}
	for _, c := range a.contacts {
		if strings.Contains(strings.ToLower(c.Name), term) ||
			strings.Contains(strings.ToLower(c.Phone), term) ||
			strings.Contains(strings.ToLower(c.Address), term) {
			out = append(out, c.clone())
		}
	}
	return out
}

// AppointmentsOnDate returns the appointments on date sorted by time.
func (a *Agenda) AppointmentsOnDate(date string) []Appointment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.onDateLocked(date)
}

func (a *Agenda) onDateLocked(date string) []Appointment {
	out := []Appointment{}
	for _, ap := range a.appointments {
		if ap.Date == date {
			out = append(out, ap)
		}
	}
	// zero-padded HH:MM sorts chronologically as a string
	slices.SortStableFunc(out, func(x, y Appointment) int { return strings.Compare(x.Time, y.Time) })
	return out
}

// ContactName returns the name of the contact or [UnknownContact].
func (a *Agenda) ContactName(id ContactID) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.contactNameLocked(id)
}

func (a *Agenda) contactNameLocked(id ContactID) string {
	for _, c := range a.contacts {
		if c.ID == id {
			return c.Name
		}
	}
	return UnknownContact
}

// Schedule is a consistent read of one day: its appointments, the contacts
// they reference and the version of the agenda it was taken at.
type Schedule struct {
	Date         string
	Version      uint64
	Appointments []Appointment
	Contacts     map[ContactID]Contact
}

func (a *Agenda) Schedule(date string) Schedule {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Schedule{
		Date:         date,
		Version:      a.version,
		Appointments: a.onDateLocked(date),
		Contacts:     make(map[ContactID]Contact),
	}
	for _, ap := range s.Appointments {
		for _, c := range a.contacts {
			if c.ID == ap.ContactID {
				s.Contacts[c.ID] = c.clone()
				break
			}
		}
	}
	return s
}

// Entry is an appointment along with the name of its contact.
type Entry struct {
	Appointment
	ContactName string `json:"contactName"`
}

type Day struct {
	Date    string  `json:"date"`
	Weekday string  `json:"weekday"`
	Entries []Entry `json:"entries"`
}

// Week returns the seven days, Sunday first, of the week containing date.
func (a *Agenda) Week(date string) ([]Day, error) {
	d, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", date, err)
	}
	sunday := d.AddDate(0, 0, -int(d.Weekday()))

	a.mu.Lock()
	defer a.mu.Unlock()
	days := make([]Day, 7)
	for i := range days {
		day := sunday.AddDate(0, 0, i)
		days[i] = Day{
			Date:    day.Format(time.DateOnly),
			Weekday: day.Weekday().String(),
			Entries: a.entriesLocked(day.Format(time.DateOnly)),
		}
	}
	return days, nil
}

func (a *Agenda) entriesLocked(date string) []Entry {
	appointments := a.onDateLocked(date)
	entries := make([]Entry, len(appointments))
	for i, ap := range appointments {
		entries[i] = Entry{Appointment: ap, ContactName: a.contactNameLocked(ap.ContactID)}
	}
	return entries
}

// dashboardContacts is how many contacts the dashboard lists.
const dashboardContacts = 5

type Dashboard struct {
	Date             string    `json:"date"`
	Entries          []Entry   `json:"entries"`
	Contacts         []Contact `json:"contacts"`
	ContactCount     int       `json:"contactCount"`
	AppointmentCount int       `json:"appointmentCount"`
}

// Dashboard summarizes date: its entries and the first few contacts.
func (a *Agenda) Dashboard(date string) Dashboard {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Dashboard{
		Date:             date,
		Entries:          a.entriesLocked(date),
		Contacts:         cloneContacts(a.contacts[:min(dashboardContacts, len(a.contacts))]),
		ContactCount:     len(a.contacts),
		AppointmentCount: len(a.appointments),
	}
}
