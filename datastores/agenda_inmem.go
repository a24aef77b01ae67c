package datastores

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"
)

// sequences are the last ids handed out per collection. They only grow, so
// an id is never reused after a delete.
type sequences struct {
	Contacts     int `json:"contacts"`
	Appointments int `json:"appointments"`
}

// Agenda is the authoritative in-memory copy of contacts and appointments.
// It implements [ContactsStore] and [AppointmentsStore] and writes the
// affected records through its [Adapter] after every mutation.
type Agenda struct {
	mu           sync.Mutex
	contacts     []Contact
	appointments []Appointment
	seq          sequences
	version      uint64
	persistErr   error
	listeners    []func(version uint64)

	adapter *Adapter
	logger  *slog.Logger
}

var (
	_ ContactsStore     = (*Agenda)(nil)
	_ AppointmentsStore = (*Agenda)(nil)
)

// OpenAgenda loads both collections through adapter, falling back to the
// seed dataset for any record that is absent or corrupt.
func OpenAgenda(ctx context.Context, adapter *Adapter, logger *slog.Logger) *Agenda {
	a := &Agenda{adapter: adapter, logger: logger}
	seedContacts, seedAppointments := Seed()

	var seeded []string
	if !adapter.Load(ctx, KeyContacts, &a.contacts) {
		a.contacts = seedContacts
		seeded = append(seeded, KeyContacts)
	}
	if !adapter.Load(ctx, KeyAppointments, &a.appointments) {
		a.appointments = seedAppointments
		seeded = append(seeded, KeyAppointments)
	}
	if !adapter.Load(ctx, KeySequences, &a.seq) {
		seeded = append(seeded, KeySequences)
	}
	// counters never fall behind stored ids, whatever the sequences record says
	for _, c := range a.contacts {
		a.seq.Contacts = max(a.seq.Contacts, c.ID)
	}
	for _, ap := range a.appointments {
		a.seq.Appointments = max(a.seq.Appointments, ap.ID)
	}

	if len(seeded) > 0 {
		logger.LogAttrs(ctx, slog.LevelInfo, "initialized missing records", slog.Any("keys", seeded))
		a.mu.Lock()
		a.commitLocked(ctx, seeded...)
		a.mu.Unlock()
	}
	return a
}

// OnChange registers fn to be called with the new version after every
// mutation. fn runs on the mutating goroutine and must not block.
func (a *Agenda) OnChange(fn func(version uint64)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listeners = append(a.listeners, fn)
}

// Version increases by one with every mutation.
func (a *Agenda) Version() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.version
}

// PersistError is the error of the last failed save, nil once a save succeeds again.
func (a *Agenda) PersistError() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.persistErr
}

func (a *Agenda) AddContact(ctx context.Context, c Contact) (Contact, error) {
	c.Name, c.Phone = strings.TrimSpace(c.Name), strings.TrimSpace(c.Phone)
	if c.Name == "" || c.Phone == "" {
		return Contact{}, ErrIncompleteDraft
	}

	a.mu.Lock()
	a.seq.Contacts++
	c.ID = a.seq.Contacts
	c = c.clone()
	a.contacts = append(a.contacts, c)
	version := a.commitLocked(ctx, KeyContacts, KeySequences)
	a.mu.Unlock()

	a.notify(version)
	return c.clone(), nil
}

// UpdateContact replaces the contact with the given id wholesale.
func (a *Agenda) UpdateContact(ctx context.Context, id ContactID, c Contact) (Contact, error) {
	a.mu.Lock()
	index := slices.IndexFunc(a.contacts, func(x Contact) bool { return x.ID == id })
	if index < 0 {
		a.mu.Unlock()
		return Contact{}, ErrObjectNotFound
	}
	c.ID = id
	c = c.clone()
	a.contacts[index] = c
	version := a.commitLocked(ctx, KeyContacts)
	a.mu.Unlock()

	a.notify(version)
	return c.clone(), nil
}

// DeleteContact removes the contact and every appointment referencing it,
// persisting both collections in one batch. It returns how many
// appointments went with the contact.
func (a *Agenda) DeleteContact(ctx context.Context, id ContactID) (int, error) {
	a.mu.Lock()
	before := len(a.contacts) + len(a.appointments)
	a.contacts = slices.DeleteFunc(a.contacts, func(c Contact) bool { return c.ID == id })
	appointments := len(a.appointments)
	a.appointments = slices.DeleteFunc(a.appointments, func(ap Appointment) bool { return ap.ContactID == id })
	removed := appointments - len(a.appointments)
	if len(a.contacts)+len(a.appointments) == before {
		a.mu.Unlock()
		return 0, nil
	}
	version := a.commitLocked(ctx, KeyContacts, KeyAppointments)
	a.mu.Unlock()

	a.notify(version)
	return removed, nil
}

func (a *Agenda) AddAppointment(ctx context.Context, ap Appointment) (Appointment, error) {
	if ap.ContactID == 0 || strings.TrimSpace(ap.Date) == "" || strings.TrimSpace(ap.Time) == "" {
		return Appointment{}, ErrIncompleteDraft
	}
	if ap.Duration == 0 {
		ap.Duration = DefaultDuration
	}

	a.mu.Lock()
	if !slices.ContainsFunc(a.contacts, func(c Contact) bool { return c.ID == ap.ContactID }) {
		a.mu.Unlock()
		return Appointment{}, ErrUnknownContact
	}
	a.seq.Appointments++
	ap.ID = a.seq.Appointments
	a.appointments = append(a.appointments, ap)
	version := a.commitLocked(ctx, KeyAppointments, KeySequences)
	a.mu.Unlock()

	a.notify(version)
	return ap, nil
}

func (a *Agenda) DeleteAppointment(ctx context.Context, id AppointmentID) error {
	a.mu.Lock()
	n := len(a.appointments)
	a.appointments = slices.DeleteFunc(a.appointments, func(ap Appointment) bool { return ap.ID == id })
	if len(a.appointments) == n {
		a.mu.Unlock()
		return nil
	}
	version := a.commitLocked(ctx, KeyAppointments)
	a.mu.Unlock()

	a.notify(version)
	return nil
}

func (a *Agenda) GetContact(id ContactID) (Contact, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	index := slices.IndexFunc(a.contacts, func(c Contact) bool { return c.ID == id })
	if index < 0 {
		return Contact{}, ErrObjectNotFound
	}
	return a.contacts[index].clone(), nil
}

func (a *Agenda) GetAppointment(id AppointmentID) (Appointment, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	index := slices.IndexFunc(a.appointments, func(ap Appointment) bool { return ap.ID == id })
	if index < 0 {
		return Appointment{}, ErrObjectNotFound
	}
	return a.appointments[index], nil
}

func (a *Agenda) Contacts() []Contact {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneContacts(a.contacts)
}

func (a *Agenda) Appointments() []Appointment {
	a.mu.Lock()
	defer a.mu.Unlock()
	return slices.Clone(a.appointments)
}

// commitLocked bumps the version and saves the named records. A failed
// save keeps the in-memory change and is remembered until the next
// successful one. Caller must hold a.mu.
func (a *Agenda) commitLocked(ctx context.Context, keys ...string) uint64 {
	a.version++

	values := make([]Named, 0, len(keys))
	for _, key := range keys {
		switch key {
		case KeyContacts:
			values = append(values, Named{Key: key, Value: a.contacts})
		case KeyAppointments:
			values = append(values, Named{Key: key, Value: a.appointments})
		case KeySequences:
			values = append(values, Named{Key: key, Value: a.seq})
		}
	}

	a.persistErr = a.adapter.Save(ctx, values...)
	if a.persistErr != nil {
		a.logger.LogAttrs(ctx, slog.LevelWarn, "could not persist agenda, keeping changes in memory",
			slog.Any("keys", keys), slog.Any("err", a.persistErr))
	}
	return a.version
}

func (a *Agenda) notify(version uint64) {
	a.mu.Lock()
	listeners := slices.Clone(a.listeners)
	a.mu.Unlock()
	for _, fn := range listeners {
		fn(version)
	}
}
