// Package renderer abstracts a controllable browser tab. Search Automation
// depends only on this contract; chromedp provides the real implementation.
package renderer

import (
	"context"
	"time"
)

// LaunchOptions configure one browser session.
type LaunchOptions struct {
	// ProxyURL routes all session traffic through an egress point when set.
	ProxyURL  string
	UserAgent string
	Width     int
	Height    int
}

// DelayFunc yields the pause before the next simulated keystroke.
type DelayFunc func() time.Duration

// Renderer launches isolated browser sessions. Each search attempt gets its
// own session, torn down afterwards.
type Renderer interface {
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one controllable tab. Every method suspends the calling task,
// never an OS thread, and respects ctx cancellation.
type Session interface {
	// Navigate suspends until the navigation commits and the page loads.
	Navigate(ctx context.Context, url string) error
	// WaitVisible blocks until the CSS selector matches a visible node.
	WaitVisible(ctx context.Context, selector string) error
	// Click dispatches a click on the first node matching selector.
	Click(ctx context.Context, selector string) error
	// TypeText sends text one character at a time, pausing per delay()
	// between characters to mimic human cadence.
	TypeText(ctx context.Context, text string, delay DelayFunc) error
	// PressEnter submits the focused form control.
	PressEnter(ctx context.Context) error
	// Evaluate runs script in the page and decodes the result into out
	// (pass nil to discard). With awaitPromise the call suspends until a
	// returned promise settles.
	Evaluate(ctx context.Context, script string, awaitPromise bool, out any) error
	// Screenshot captures the full viewport as PNG.
	Screenshot(ctx context.Context) ([]byte, error)
	// HTML returns the serialized current DOM.
	HTML(ctx context.Context) (string, error)
	// Title returns the current document title.
	Title(ctx context.Context) (string, error)
	// CurrentURL returns the tab's location after any redirects.
	CurrentURL(ctx context.Context) (string, error)
	// Close tears down the tab and its browser process.
	Close()
}
