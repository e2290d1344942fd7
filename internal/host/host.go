// Package host declares the capabilities the scanners consume from the browser
// and from the classification service.
package host

//go:generate mockgen -source=host.go -destination=mocks/mock_host.go -package=mocks

import (
	"context"

	"github.com/lcalzada-xor/phishguard/internal/model"
	"github.com/lcalzada-xor/phishguard/internal/present"
)

// Classifier returns a verdict for a URL.
type Classifier interface {
	Classify(ctx context.Context, rawURL string) (model.ClassificationResponse, error)
}

// PageSource exposes the URL of the page a scan runs in.
type PageSource interface {
	CurrentURL(ctx context.Context) (string, error)
}

// Notifier shows a blocking, dismiss-only notification. Alert returns once
// the notification has been dismissed.
type Notifier interface {
	Alert(ctx context.Context, message string) error
}

// Page is a loaded page the automatic scan was injected into.
type Page interface {
	PageSource
	Notifier
}

// TabQuerier returns the URL of the focused tab in the active window.
type TabQuerier interface {
	ActiveTabURL(ctx context.Context) (string, error)
}

// Panel is the result region of the popup.
type Panel interface {
	Render(ctx context.Context, view present.View) error
}

// Trigger is the popup control a manual check is bound to. The handler is
// called once per activation.
type Trigger interface {
	OnActivate(handler func(ctx context.Context)) error
}
