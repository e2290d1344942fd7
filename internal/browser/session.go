package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/host"
)

const tabProbeTimeout = 2 * time.Second

// ErrNoActiveTab is returned when the browser has no page to check.
var ErrNoActiveTab = errors.New("no active browser tab")

// Options controls how the browser is reached.
type Options struct {
	// Remote is the DevTools websocket URL of a running browser. When empty
	// a local Chromium is launched.
	Remote   string
	Headless bool
	Insecure bool
	// DismissDialogs accepts page dialogs as soon as they open. Used when no
	// one can dismiss them, e.g. in headless mode.
	DismissDialogs bool
	Logger         zerolog.Logger
}

// Session is an attached browser. It provides the host capabilities the
// scanners consume: page load events, the active tab and the popup panel.
type Session struct {
	parent context.Context
	ctx    context.Context
	cancel context.CancelFunc
	opts   Options
	logger zerolog.Logger

	mu      sync.Mutex
	tabs    map[target.ID]*Tab
	popup   *Popup
	opening bool
	closers []context.CancelFunc
}

// NewSession launches or attaches to a browser.
func NewSession(ctx context.Context, opts Options) (*Session, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		allocCtx    context.Context
		cancelAlloc context.CancelFunc
	)
	if opts.Remote != "" {
		allocCtx, cancelAlloc = chromedp.NewRemoteAllocator(ctx, opts.Remote)
	} else {
		allocCtx, cancelAlloc = chromedp.NewExecAllocator(ctx, allocatorOptions(opts)...)
	}

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	s := &Session{
		parent: ctx,
		ctx:    browserCtx,
		opts:   opts,
		logger: opts.Logger,
		tabs:   make(map[target.ID]*Tab),
	}
	s.cancel = func() {
		cancelBrowser()
		cancelAlloc()
	}

	// The first Run allocates the browser and must use browserCtx itself: a
	// derived context would stop the browser when it is cancelled.
	err := chromedp.Run(browserCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		c := chromedp.FromContext(ctx)
		return target.SetDiscoverTargets(true).Do(cdp.WithExecutor(ctx, c.Browser))
	}))
	if err != nil {
		s.cancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	chromedp.ListenBrowser(browserCtx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetDestroyed); ok {
			s.forget(e.TargetID)
		}
	})

	return s, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	allocatorOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", opts.Headless),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("metrics-recording-only", true),
		chromedp.Flag("safebrowsing-disable-auto-update", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("ignore-certificate-errors", opts.Insecure),
	)

	if execPath, ok := findExecPath(); ok {
		allocatorOpts = append(allocatorOpts, chromedp.ExecPath(execPath))
	}

	return allocatorOpts
}

// Close detaches from the browser. A launched browser is shut down.
func (s *Session) Close() {
	s.mu.Lock()
	closers := s.closers
	s.closers = nil
	s.mu.Unlock()

	for _, c := range closers {
		c()
	}
	s.cancel()
}

// Context returns the browser context for running chromedp actions.
func (s *Session) Context() context.Context {
	return s.ctx
}

// ActiveTabURL returns the URL of the focused page. Pages that are visible
// but not focused come next, then any page.
func (s *Session) ActiveTabURL(ctx context.Context) (string, error) {
	infos, err := s.targets(ctx)
	if err != nil {
		return "", err
	}

	var candidates []*target.Info
	for _, info := range infos {
		if info.Type != "page" || s.isPopup(info.TargetID) {
			continue
		}
		candidates = append(candidates, info)
	}
	if len(candidates) == 0 {
		return "", ErrNoActiveTab
	}

	var visible *Tab
	for _, info := range candidates {
		tab := s.tab(info.TargetID)
		state, err := tab.probe(ctx)
		if err != nil {
			s.logger.Debug().Err(err).Str("target", string(info.TargetID)).Msg("could not probe tab")
			continue
		}
		if state.Visible && state.Focused {
			return tab.CurrentURL(ctx)
		}
		if state.Visible && visible == nil {
			visible = tab
		}
	}

	if visible != nil {
		return visible.CurrentURL(ctx)
	}
	return candidates[0].URL, nil
}

// PageLoads returns a channel receiving a page every time one of the
// browser's tabs finishes loading. The channel is never closed; stop
// reading when ctx is done.
func (s *Session) PageLoads(ctx context.Context) (<-chan host.Page, error) {
	events := make(chan host.Page)

	chromedp.ListenBrowser(s.ctx, func(ev interface{}) {
		if e, ok := ev.(*target.EventTargetCreated); ok && e.TargetInfo.Type == "page" {
			go s.watchTab(ctx, e.TargetInfo.TargetID, events)
		}
	})

	infos, err := s.targets(ctx)
	if err != nil {
		return nil, err
	}
	for _, info := range infos {
		if info.Type == "page" {
			go s.watchTab(ctx, info.TargetID, events)
		}
	}

	return events, nil
}

// targets lists the browser targets, giving up when ctx is done.
func (s *Session) targets(ctx context.Context) ([]*target.Info, error) {
	listCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	infos, err := chromedp.Targets(listCtx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return infos, nil
}

func (s *Session) watchTab(ctx context.Context, id target.ID, events chan<- host.Page) {
	if s.isPopup(id) {
		return
	}

	tab := s.tab(id)
	if !tab.markWatched() {
		return
	}

	tab.onLoad(func() {
		go func() {
			select {
			case events <- tab:
			case <-ctx.Done():
			}
		}()
	})

	// Listeners only fire once the target is attached.
	if err := tab.ensureAttached(); err != nil {
		s.logger.Debug().Err(err).Str("target", string(id)).Msg("could not attach to tab")
	}
}

func (s *Session) tab(id target.ID) *Tab {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.tabs[id]; ok {
		return t
	}

	var tabCtx context.Context
	if c := chromedp.FromContext(s.ctx); c != nil && c.Target != nil && c.Target.TargetID == id {
		tabCtx = s.ctx
	} else {
		var cancel context.CancelFunc
		tabCtx, cancel = chromedp.NewContext(s.ctx, chromedp.WithTargetID(id))
		s.closers = append(s.closers, cancel)
	}

	t := newTab(tabCtx, id, s.opts.DismissDialogs, s.logger)
	s.tabs[id] = t
	return t
}

func (s *Session) forget(id target.ID) {
	s.mu.Lock()
	delete(s.tabs, id)
	popup := s.popup
	s.mu.Unlock()

	if popup != nil && popup.id == id {
		popup.markClosed()
	}
}

func (s *Session) isPopup(id target.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.popup != nil && s.popup.id == id
}

// IsAvailable returns true when a supported Chromium based browser can be located.
func IsAvailable() bool {
	if _, ok := findExecPath(); ok {
		return true
	}

	// chromedp can find the browser automatically even when we don't provide
	// a path. Only report true when CHROMEDP_EXEC_PATH points to a real file.
	execPath := strings.TrimSpace(os.Getenv("CHROMEDP_EXEC_PATH"))
	if execPath == "" {
		return false
	}

	if _, err := os.Stat(execPath); err == nil {
		return true
	}

	return false
}

func findExecPath() (string, bool) {
	if env := strings.TrimSpace(os.Getenv("CHROMEDP_EXEC_PATH")); env != "" {
		if stat, err := os.Stat(env); err == nil && !stat.IsDir() {
			return env, true
		}
	}

	names := []string{
		"chromium",
		"chromium-browser",
		"google-chrome",
		"google-chrome-stable",
		"chrome",
		"msedge",
		"microsoft-edge",
	}

	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, true
		}
	}

	return "", false
}

// runIn runs actions on a chromedp context while honouring ctx cancellation.
func runIn(ctx, chromeCtx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(chromeCtx)
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}
