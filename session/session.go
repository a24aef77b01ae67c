// Package session owns the state of the single user session: the active
// view, the selected date, the contact search and the route of that date.
// Every change goes through one goroutine consuming an inbox of messages.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gerry02/agenda-app/itinerary"
)

type View string

const (
	ViewDashboard View = "dashboard"
	ViewContacts  View = "contacts"
	ViewCalendar  View = "calendar"
	ViewRoute     View = "route"
)

func (v View) valid() bool {
	switch v {
	case ViewDashboard, ViewContacts, ViewCalendar, ViewRoute:
		return true
	}
	return false
}

// DefaultDate is the date selected when a session starts.
const DefaultDate = "2025-02-27"

// State is a snapshot of the session.
type State struct {
	View   View
	Date   string
	Search string

	// Route is the last measured route of Date, nil until the route view
	// has been shown for it. RoutePending is set while it is recomputed.
	Route           *itinerary.Route
	RoutePending    bool
	RouteGeneration uint64
}

// Patch holds the fields to change; nil fields are kept.
type Patch struct {
	View   *View
	Date   *string
	Search *string
}

// Router computes the route of a date.
type Router interface {
	Compute(ctx context.Context, date string) itinerary.Route
}

var (
	ErrInvalidView = errors.New("session: unknown view")
	ErrInvalidDate = errors.New("session: date must be YYYY-MM-DD")
	ErrStopped     = errors.New("session: controller stopped")
)

type (
	updateMsg struct {
		patch Patch
		reply chan<- updateResult
	}
	updateResult struct {
		state State
		err   error
	}
	snapshotMsg struct {
		reply chan<- State
	}
	routeMsg struct {
		generation uint64
		route      itinerary.Route
	}
)

type Controller struct {
	router Router
	logger *slog.Logger

	inbox   chan any
	changed chan struct{}
	done    chan struct{}

	// owned by the Run goroutine
	state  State
	cancel context.CancelFunc
}

func New(router Router, logger *slog.Logger) *Controller {
	return &Controller{
		router:  router,
		logger:  logger,
		inbox:   make(chan any),
		changed: make(chan struct{}, 1),
		done:    make(chan struct{}),
		state:   State{View: ViewDashboard, Date: DefaultDate},
	}
}

// Run consumes messages until ctx is done. It must be called once.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.done)
	defer func() {
		if c.cancel != nil {
			c.cancel()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.changed:
			c.recompute(ctx)
		case msg := <-c.inbox:
			switch msg := msg.(type) {
			case updateMsg:
				state, err := c.apply(ctx, msg.patch)
				msg.reply <- updateResult{state, err}
			case snapshotMsg:
				msg.reply <- c.state
			case routeMsg:
				c.settle(msg)
			default:
				panic(fmt.Sprintf("session: unexpected message %T", msg))
			}
		}
	}
}

// DataChanged tells the controller that contacts or appointments changed.
// It never blocks and bursts of changes collapse into one recomputation.
func (c *Controller) DataChanged(uint64) {
	select {
	case c.changed <- struct{}{}:
	default:
	}
}

// Update applies patch and returns the resulting state.
func (c *Controller) Update(ctx context.Context, patch Patch) (State, error) {
	reply := make(chan updateResult, 1)
	if err := c.send(ctx, updateMsg{patch, reply}); err != nil {
		return State{}, err
	}
	res := <-reply
	return res.state, res.err
}

func (c *Controller) Snapshot(ctx context.Context) (State, error) {
	reply := make(chan State, 1)
	if err := c.send(ctx, snapshotMsg{reply}); err != nil {
		return State{}, err
	}
	return <-reply, nil
}

func (c *Controller) send(ctx context.Context, msg any) error {
	select {
	case c.inbox <- msg:
		return nil
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) apply(ctx context.Context, patch Patch) (State, error) {
	next := c.state
	if patch.View != nil {
		if !patch.View.valid() {
			return c.state, fmt.Errorf("%w: %q", ErrInvalidView, *patch.View)
		}
		next.View = *patch.View
	}
	if patch.Date != nil {
		if _, err := time.Parse(time.DateOnly, *patch.Date); err != nil {
			return c.state, fmt.Errorf("%w: %q", ErrInvalidDate, *patch.Date)
		}
		next.Date = *patch.Date
	}
	if patch.Search != nil {
		next.Search = *patch.Search
	}

	retrigger := next.View != c.state.View || next.Date != c.state.Date
	if next.Date != c.state.Date {
		next.Route = nil
	}
	c.state = next
	if retrigger {
		c.recompute(ctx)
	}
	return c.state, nil
}

// recompute starts measuring the route of the selected date when the route
// view is active. Any computation still running is cancelled and its
// result will be discarded.
func (c *Controller) recompute(ctx context.Context) {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.state.RouteGeneration++
	if c.state.View != ViewRoute {
		c.state.RoutePending = false
		return
	}
	c.state.RoutePending = true

	generation, date := c.state.RouteGeneration, c.state.Date
	taskCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go func() {
		route := c.router.Compute(taskCtx, date)
		select {
		case c.inbox <- routeMsg{generation, route}:
		case <-ctx.Done():
		}
	}()
}

func (c *Controller) settle(msg routeMsg) {
	if msg.generation != c.state.RouteGeneration {
		c.logger.Debug("discarding stale route",
			slog.String("date", msg.route.Date),
			slog.Uint64("generation", msg.generation),
			slog.Uint64("current", c.state.RouteGeneration))
		return
	}
	c.state.Route = &msg.route
	c.state.RoutePending = false
	c.cancel()
	c.cancel = nil
}
