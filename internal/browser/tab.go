package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"
)

// Tab is one browser page. It implements host.Page for the automatic scan.
type Tab struct {
	ctx    context.Context
	id     target.ID
	logger zerolog.Logger

	mu      sync.Mutex
	watched bool
	onLoads []func()

	attachOnce sync.Once
	attachErr  error
}

type tabState struct {
	Visible bool `json:"visible"`
	Focused bool `json:"focused"`
}

const probeScript = `({visible: document.visibilityState === "visible", focused: document.hasFocus()})`

func newTab(ctx context.Context, id target.ID, dismissDialogs bool, logger zerolog.Logger) *Tab {
	t := &Tab{ctx: ctx, id: id, logger: logger.With().Str("target", string(id)).Logger()}

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *page.EventLoadEventFired:
			t.mu.Lock()
			handlers := append([]func(){}, t.onLoads...)
			t.mu.Unlock()
			for _, h := range handlers {
				h()
			}
		case *page.EventJavascriptDialogOpening:
			if !dismissDialogs {
				return
			}
			t.logger.Info().Str("message", e.Message).Msg("dismissing page dialog")
			go func() {
				if err := chromedp.Run(ctx, page.HandleJavaScriptDialog(true)); err != nil {
					t.logger.Debug().Err(err).Msg("could not dismiss dialog")
				}
			}()
		}
	})

	return t
}

// ID returns the DevTools target id of the tab.
func (t *Tab) ID() string {
	return string(t.id)
}

// CurrentURL returns the address of the document loaded in the tab.
func (t *Tab) CurrentURL(ctx context.Context) (string, error) {
	if err := t.ensureAttached(); err != nil {
		return "", err
	}

	var location string
	if err := runIn(ctx, t.ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("read location: %w", err)
	}
	return location, nil
}

// Alert shows a blocking alert dialog in the tab and returns once it has
// been dismissed.
func (t *Tab) Alert(ctx context.Context, message string) error {
	if err := t.ensureAttached(); err != nil {
		return err
	}

	quoted, err := json.Marshal(message)
	if err != nil {
		return err
	}

	if err := runIn(ctx, t.ctx, chromedp.Evaluate(fmt.Sprintf("window.alert(%s)", quoted), nil)); err != nil {
		return fmt.Errorf("show alert: %w", err)
	}
	return nil
}

func (t *Tab) probe(ctx context.Context) (tabState, error) {
	if err := t.ensureAttached(); err != nil {
		return tabState{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, tabProbeTimeout)
	defer cancel()

	var state tabState
	err := runIn(ctx, t.ctx, chromedp.Evaluate(probeScript, &state))
	return state, err
}

// ensureAttached attaches to the target on first use. The first Run must be
// made on the tab context itself, cancelling a derived one would detach.
func (t *Tab) ensureAttached() error {
	t.attachOnce.Do(func() {
		if err := chromedp.Run(t.ctx, page.Enable()); err != nil {
			t.attachErr = fmt.Errorf("attach to tab: %w", err)
		}
	})
	return t.attachErr
}

func (t *Tab) markWatched() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.watched {
		return false
	}
	t.watched = true
	return true
}

func (t *Tab) onLoad(h func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onLoads = append(t.onLoads, h)
}
