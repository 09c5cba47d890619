package cdp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/ashparshp/hairone/pkg/browser"
)

// Runtime launches (or attaches to) one Chrome process and opens every
// session in its own browser context.
type Runtime struct {
	cfg Config

	startOnce   sync.Once
	startErr    error
	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	cancel      context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// NewRuntime validates cfg. The browser itself starts on the first NewSession.
func NewRuntime(cfg Config) (*Runtime, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runtime{cfg: cfg}, nil
}

func (r *Runtime) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", r.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("hide-scrollbars", true),
	)
	if r.cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	if r.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.cfg.ExecPath))
	}
	if r.cfg.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(r.cfg.UserDataDir))
	}
	for name, value := range r.cfg.ExtraFlags {
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

func (r *Runtime) start() error {
	r.startOnce.Do(func() {
		if r.cfg.RemoteURL != "" {
			r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), r.cfg.RemoteURL)
		} else {
			r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), r.allocatorOptions()...)
		}
		r.browserCtx, r.cancel = chromedp.NewContext(r.allocCtx)

		started := make(chan error, 1)
		go func() { started <- chromedp.Run(r.browserCtx) }()

		timer := time.NewTimer(r.cfg.LaunchTimeout)
		defer timer.Stop()
		select {
		case err := <-started:
			r.startErr = err
		case <-timer.C:
			r.startErr = fmt.Errorf("browser did not start within %s", r.cfg.LaunchTimeout)
		}
		if r.startErr != nil {
			r.cancel()
			r.allocCancel()
		}
	})
	return r.startErr
}

// NewSession opens a fresh browser context with one page and applies cfg.
func (r *Runtime) NewSession(ctx context.Context, cfg browser.SessionConfig) (browser.BrowserSession, error) {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return nil, browser.ErrUnavailable
	}
	if err := r.start(); err != nil {
		return nil, browser.LaunchError(err)
	}
	return newSession(ctx, r, cfg)
}

// Close shuts the browser down.
func (r *Runtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if r.cancel != nil {
		r.cancel()
	}
	if r.allocCancel != nil {
		r.allocCancel()
	}
	return nil
}
