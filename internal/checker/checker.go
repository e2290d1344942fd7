package checker

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/classify"
	"github.com/lcalzada-xor/phishguard/internal/host"
	"github.com/lcalzada-xor/phishguard/internal/present"
)

// ErrAlreadyBound is returned by Bind when a trigger is already attached.
var ErrAlreadyBound = errors.New("checker already bound to a trigger")

// Checker runs manual checks of the active tab and owns the result panel.
//
// Every activation takes a new generation and cancels the request of the
// previous one. A result is only rendered when its generation is still the
// latest, so the panel always reflects the most recent activation.
type Checker struct {
	client host.Classifier
	tabs   host.TabQuerier
	panel  host.Panel
	logger zerolog.Logger

	// renderMu orders panel writes; mu guards the fields below and is never
	// held across a render.
	renderMu sync.Mutex

	mu         sync.Mutex
	state      present.State
	generation uint64
	cancel     context.CancelFunc
	bound      bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithLogger sets the checker logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Checker) {
		c.logger = logger
	}
}

// New returns an idle Checker.
func New(client host.Classifier, tabs host.TabQuerier, panel host.Panel, opts ...Option) *Checker {
	c := &Checker{
		client: client,
		tabs:   tabs,
		panel:  panel,
		logger: zerolog.Nop(),
		state:  present.StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bind attaches the checker to its trigger. It may be called once.
func (c *Checker) Bind(trigger host.Trigger) error {
	c.mu.Lock()
	if c.bound {
		c.mu.Unlock()
		return ErrAlreadyBound
	}
	c.bound = true
	c.mu.Unlock()

	if err := trigger.OnActivate(func(ctx context.Context) {
		c.Activate(ctx)
	}); err != nil {
		c.mu.Lock()
		c.bound = false
		c.mu.Unlock()
		return err
	}
	return nil
}

// State returns the current panel state.
func (c *Checker) State() present.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Activate runs one manual check. It returns the view this activation ended
// with and whether it was rendered; a superseded activation returns false.
func (c *Checker) Activate(ctx context.Context) (present.View, bool) {
	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	c.cancel = cancel
	c.state = present.StateChecking
	c.mu.Unlock()

	c.apply(ctx, gen, present.CheckingView())

	view := c.check(reqCtx)

	if !c.apply(ctx, gen, view) {
		c.logger.Debug().
			Uint64("generation", gen).
			Stringer("state", view.State).
			Msg("discarding superseded result")
		return view, false
	}
	return view, true
}

func (c *Checker) check(ctx context.Context) present.View {
	rawURL, err := c.tabs.ActiveTabURL(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("could not query active tab")
		return present.ErrorView()
	}

	resp, err := c.client.Classify(ctx, rawURL)
	if err != nil {
		if ctx.Err() != nil {
			c.logger.Debug().Err(err).Str("url", rawURL).Msg("manual check cancelled")
			return present.ErrorView()
		}
		kind, _ := classify.KindOf(err)
		c.logger.Warn().Err(err).Str("url", rawURL).Stringer("kind", kind).Msg("manual check failed")
		return present.ErrorView()
	}

	res := present.Present(resp)
	c.logger.Info().
		Str("url", rawURL).
		Str("percentage", res.Percentage).
		Stringer("severity", res.Severity).
		Msg("manual check verdict")
	return res.View()
}

// apply renders view if gen is still the latest activation and reports
// whether it did.
func (c *Checker) apply(ctx context.Context, gen uint64, view present.View) bool {
	c.renderMu.Lock()
	defer c.renderMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		return false
	}
	c.state = view.State
	if view.State.Terminal() {
		c.cancel = nil
	}
	c.mu.Unlock()

	if err := c.panel.Render(ctx, view); err != nil {
		c.logger.Warn().Err(err).Stringer("state", view.State).Msg("could not render result panel")
	}
	return true
}
