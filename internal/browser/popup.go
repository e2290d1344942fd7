package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/output"
	"github.com/lcalzada-xor/phishguard/internal/present"
)

const (
	popupWidth  = 320
	popupHeight = 260
)

// ErrPopupOpen is returned when a session already shows a popup.
var ErrPopupOpen = errors.New("popup already open")

// Popup is the panel window with the check button and the result region.
// It implements host.Trigger and host.Panel.
type Popup struct {
	id      target.ID
	ctx     context.Context
	cancel  context.CancelFunc
	handCtx context.Context
	logger  zerolog.Logger

	mu      sync.Mutex
	handler func(context.Context)

	closeOnce sync.Once
	closed    chan struct{}
}

// OpenPopup opens the popup panel in its own window.
func (s *Session) OpenPopup(ctx context.Context) (*Popup, error) {
	if !s.reservePopup() {
		return nil, ErrPopupOpen
	}

	html, err := output.PopupHTML()
	if err != nil {
		s.releasePopup(nil)
		return nil, fmt.Errorf("render popup: %w", err)
	}

	var id target.ID
	err = runIn(ctx, s.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		var err error
		id, err = target.CreateTarget("about:blank").
			WithNewWindow(true).
			WithWidth(popupWidth).
			WithHeight(popupHeight).
			Do(cdp.WithExecutor(ctx, c.Browser))
		return err
	}))
	if err != nil {
		s.releasePopup(nil)
		return nil, fmt.Errorf("create popup window: %w", err)
	}

	popCtx, cancel := chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
	p := &Popup{
		id:      id,
		ctx:     popCtx,
		cancel:  cancel,
		handCtx: s.parent,
		logger:  s.logger.With().Str("target", string(id)).Logger(),
		closed:  make(chan struct{}),
	}

	s.releasePopup(p)

	chromedp.ListenTarget(popCtx, func(ev interface{}) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok && e.Name == output.BindingName {
			p.dispatch()
		}
	})

	err = chromedp.Run(popCtx, runtime.AddBinding(output.BindingName))
	if err == nil {
		err = runIn(ctx, popCtx,
			chromedp.Navigate("data:text/html;charset=utf-8,"+url.PathEscape(html)),
			chromedp.WaitVisible("#"+output.ButtonID, chromedp.ByQuery),
		)
	}
	if err != nil {
		p.Close()
		s.releasePopup(nil)
		return nil, fmt.Errorf("load popup: %w", err)
	}

	return p, nil
}

// reservePopup claims the popup slot. Only one caller wins until the slot
// is released.
func (s *Session) reservePopup() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.popup != nil || s.opening {
		return false
	}
	s.opening = true
	return true
}

// releasePopup ends a reservation, installing p as the session popup.
func (s *Session) releasePopup(p *Popup) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opening = false
	s.popup = p
}

// OnActivate registers the handler run on every button press.
func (p *Popup) OnActivate(handler func(ctx context.Context)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.handler != nil {
		return errors.New("popup trigger already has a handler")
	}
	p.handler = handler
	return nil
}

func (p *Popup) dispatch() {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()

	if h == nil {
		p.logger.Debug().Msg("button pressed before a handler was bound")
		return
	}
	go h(p.handCtx)
}

// Render writes view into the result region.
func (p *Popup) Render(ctx context.Context, view present.View) error {
	script, err := output.PanelScript(view)
	if err != nil {
		return err
	}

	var found bool
	if err := runIn(ctx, p.ctx, chromedp.Evaluate(script, &found)); err != nil {
		return fmt.Errorf("render panel: %w", err)
	}
	if !found {
		return errors.New("render panel: result region missing")
	}
	return nil
}

// Click presses the check button as a user would.
func (p *Popup) Click(ctx context.Context) error {
	return runIn(ctx, p.ctx, chromedp.Click("#"+output.ButtonID, chromedp.ByQuery))
}

// ResultText returns the text currently shown in the result region.
func (p *Popup) ResultText(ctx context.Context) (string, error) {
	var text string
	err := runIn(ctx, p.ctx, chromedp.Text("#"+output.ResultID, &text, chromedp.ByQuery))
	return text, err
}

// Closed is closed once the popup window goes away.
func (p *Popup) Closed() <-chan struct{} {
	return p.closed
}

// Close closes the popup window.
func (p *Popup) Close() {
	p.cancel()
	p.markClosed()
}

func (p *Popup) markClosed() {
	p.closeOnce.Do(func() {
		close(p.closed)
	})
}
