package scan

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/lcalzada-xor/phishguard/internal/classify"
	"github.com/lcalzada-xor/phishguard/internal/host"
	"github.com/lcalzada-xor/phishguard/internal/network"
	"github.com/lcalzada-xor/phishguard/internal/present"
)

// Outcome describes what a single scan did.
type Outcome struct {
	URL     string
	Skipped bool
	Message string
	Err     error
}

// Scanner runs the automatic scan for loaded pages.
type Scanner struct {
	client host.Classifier
	rules  *network.Rules
	logger zerolog.Logger
}

// Option configures a Scanner.
type Option func(*Scanner)

// WithRules limits scanning to pages matching rules.
func WithRules(rules *network.Rules) Option {
	return func(s *Scanner) {
		s.rules = rules
	}
}

// WithLogger sets the scanner logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// New returns a Scanner using client for verdicts.
func New(client host.Classifier, opts ...Option) *Scanner {
	s := &Scanner{client: client, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Scan classifies the page URL and shows one blocking notification with the
// verdict, or the fixed fallback message when the check fails. Scan never
// retries and keeps no state once the notification is dismissed.
func (s *Scanner) Scan(ctx context.Context, page host.Page) Outcome {
	rawURL, err := page.CurrentURL(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("could not read page url")
		return s.notify(ctx, page, Outcome{Message: present.AutoErrorMessage, Err: err})
	}

	out := Outcome{URL: rawURL}
	if s.rules != nil && !s.rules.Allows(rawURL) {
		s.logger.Debug().Str("url", rawURL).Msg("page does not match activation rules")
		out.Skipped = true
		return out
	}

	resp, err := s.client.Classify(ctx, rawURL)
	if err != nil {
		kind, _ := classify.KindOf(err)
		s.logger.Warn().Err(err).Str("url", rawURL).Stringer("kind", kind).Msg("auto scan failed")
		out.Message = present.AutoErrorMessage
		out.Err = err
		return s.notify(ctx, page, out)
	}

	res := present.Present(resp)
	s.logger.Info().
		Str("url", rawURL).
		Str("percentage", res.Percentage).
		Stringer("severity", res.Severity).
		Msg("auto scan verdict")

	out.Message = res.Notification()
	return s.notify(ctx, page, out)
}

func (s *Scanner) notify(ctx context.Context, page host.Page, out Outcome) Outcome {
	if err := page.Alert(ctx, out.Message); err != nil {
		s.logger.Warn().Err(err).Str("url", out.URL).Msg("could not show notification")
	}
	return out
}

// Watch scans every page received from events, each on its own goroutine.
// It returns once events is closed or ctx is done and all started scans have
// finished. onDone, when not nil, receives every outcome.
func (s *Scanner) Watch(ctx context.Context, events <-chan host.Page, onDone func(Outcome)) {
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case page, ok := <-events:
			if !ok {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				out := s.Scan(ctx, page)
				if onDone != nil {
					onDone(out)
				}
			}()
		}
	}
}
