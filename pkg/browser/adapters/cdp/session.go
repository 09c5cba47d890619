package cdp

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	cdpbrowser "github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/inspector"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/ashparshp/hairone/pkg/browser"
)

// Session is one Chrome browser context holding a single page.
type Session struct {
	id  string
	cfg browser.SessionConfig

	ctx    context.Context
	cancel context.CancelFunc

	operationTimeout time.Duration

	mu          sync.Mutex
	closed      bool
	done        chan struct{}
	doneOnce    sync.Once
	interceptor browser.Interceptor
	intercepted bool
	console     []browser.ConsoleHandler
}

func newSession(ctx context.Context, r *Runtime, cfg browser.SessionConfig) (*Session, error) {
	tabCtx, cancel := chromedp.NewContext(r.browserCtx, chromedp.WithNewBrowserContext())
	s := &Session{
		id:               cfg.SessionID,
		cfg:              cfg,
		ctx:              tabCtx,
		cancel:           cancel,
		operationTimeout: r.cfg.OperationTimeout,
		done:             make(chan struct{}),
	}

	// The first Run creates the target and must use the page context itself,
	// otherwise the target is torn down with the caller's deadline.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		return nil, browser.LaunchError(fmt.Errorf("open page: %w", err))
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)
	go func() {
		<-tabCtx.Done()
		s.markDone()
	}()

	runCtx, stop := s.bind(ctx)
	defer stop()
	if err := chromedp.Run(runCtx, s.setupActions()...); err != nil {
		cancel()
		return nil, browser.LaunchError(fmt.Errorf("configure page: %w", err))
	}
	return s, nil
}

func (s *Session) setupActions() []chromedp.Action {
	vp := s.cfg.Viewport
	actions := []chromedp.Action{
		cdpruntime.Enable(),
		emulation.SetDeviceMetricsOverride(int64(vp.Width), int64(vp.Height), vp.DeviceScaleFactor, false),
		emulation.SetEmulatedMedia().WithFeatures([]*emulation.MediaFeature{
			{Name: "prefers-color-scheme", Value: string(s.cfg.ColorScheme)},
		}),
	}
	if s.cfg.UserAgent != "" {
		ua := emulation.SetUserAgentOverride(s.cfg.UserAgent)
		if s.cfg.Locale != "" {
			ua = ua.WithAcceptLanguage(s.cfg.Locale)
		}
		actions = append(actions, ua)
	}
	if s.cfg.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(s.cfg.Locale))
	}
	if s.cfg.Timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(s.cfg.Timezone))
	}
	if len(s.cfg.Permissions) > 0 {
		actions = append(actions, chromedp.ActionFunc(func(ctx context.Context) error {
			browserContextID := chromedp.FromContext(ctx).BrowserContextID
			for _, name := range s.cfg.Permissions {
				err := cdpbrowser.SetPermission(&cdpbrowser.PermissionDescriptor{Name: name}, cdpbrowser.PermissionSettingGranted).
					WithBrowserContextID(browserContextID).
					Do(ctx)
				if err != nil {
					return fmt.Errorf("grant %s: %w", name, err)
				}
			}
			return nil
		}))
	}
	return actions
}

// ID returns the session identifier.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// Config returns the configuration the session was opened with.
func (s *Session) Config() browser.SessionConfig {
	return s.cfg
}

// Navigate loads url and waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	runCtx, stop := s.bind(ctx)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return s.navigationError(url, err)
	}
	return nil
}

// Reload reloads the current document.
func (s *Session) Reload(ctx context.Context) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.NavigationTimeout)
	defer cancel()
	runCtx, stop := s.bind(ctx)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Reload()); err != nil {
		return s.navigationError("reload", err)
	}
	return nil
}

func (s *Session) navigationError(url string, err error) error {
	if s.isDone() {
		return browser.SessionClosedError(s.id, err)
	}
	return browser.NavigationError(url, err)
}

// URL returns the current document location.
func (s *Session) URL(ctx context.Context) (string, error) {
	var loc string
	err := s.run(ctx, chromedp.Location(&loc))
	return loc, err
}

// AddInitScript registers source to run before page scripts on later documents.
func (s *Session) AddInitScript(ctx context.Context, source string) (browser.ScriptID, error) {
	var id page.ScriptIdentifier
	err := s.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		id, err = page.AddScriptToEvaluateOnNewDocument(source).Do(ctx)
		return err
	}))
	return browser.ScriptID(id), err
}

// RemoveInitScript unregisters a script added with AddInitScript.
func (s *Session) RemoveInitScript(ctx context.Context, id browser.ScriptID) error {
	return s.run(ctx, page.RemoveScriptToEvaluateOnNewDocument(page.ScriptIdentifier(id)))
}

// SetInterceptor pauses every request through the Fetch domain and lets fn
// decide its fate.
func (s *Session) SetInterceptor(ctx context.Context, fn browser.Interceptor) error {
	s.mu.Lock()
	s.interceptor = fn
	enabled := s.intercepted
	s.intercepted = fn != nil
	s.mu.Unlock()

	if fn == nil {
		if !enabled {
			return nil
		}
		return s.run(ctx, fetch.Disable())
	}
	return s.run(ctx, fetch.Enable().WithPatterns([]*fetch.RequestPattern{
		{URLPattern: "*", RequestStage: fetch.RequestStageRequest},
	}))
}

// OnConsole registers a console handler.
func (s *Session) OnConsole(fn browser.ConsoleHandler) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.console = append(s.console, fn)
	s.mu.Unlock()
}

func (s *Session) onEvent(ev any) {
	switch e := ev.(type) {
	case *fetch.EventRequestPaused:
		// Handlers run on the event loop; replying must not block it.
		go s.handlePaused(e)
	case *cdpruntime.EventConsoleAPICalled:
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			if len(arg.Value) > 0 {
				parts = append(parts, strings.Trim(string(arg.Value), `"`))
			} else if arg.Description != "" {
				parts = append(parts, arg.Description)
			}
		}
		s.emitConsole(browser.ConsoleMessage{Level: string(e.Type), Text: strings.Join(parts, " ")})
	case *cdpruntime.EventExceptionThrown:
		if e.ExceptionDetails == nil {
			return
		}
		text := e.ExceptionDetails.Text
		if e.ExceptionDetails.Exception != nil && e.ExceptionDetails.Exception.Description != "" {
			text = e.ExceptionDetails.Exception.Description
		}
		s.emitConsole(browser.ConsoleMessage{Level: "exception", Text: text})
	case *inspector.EventTargetCrashed:
		s.markDone()
	}
}

func (s *Session) emitConsole(msg browser.ConsoleMessage) {
	s.mu.Lock()
	handlers := append([]browser.ConsoleHandler(nil), s.console...)
	s.mu.Unlock()
	for _, fn := range handlers {
		fn(msg)
	}
}

func (s *Session) handlePaused(ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(s.ctx)
	if c == nil || c.Target == nil {
		return
	}
	ctx := cdp.WithExecutor(s.ctx, c.Target)

	s.mu.Lock()
	fn := s.interceptor
	s.mu.Unlock()

	var res *browser.Fulfillment
	if fn != nil {
		res = fn(toRequest(ev))
	}
	if res == nil {
		if err := fetch.ContinueRequest(ev.RequestID).Do(ctx); err != nil {
			s.interceptFailed("continue", ev, err)
		}
		return
	}

	headers := make([]*fetch.HeaderEntry, 0, len(res.Headers))
	for name, value := range res.Headers {
		headers = append(headers, &fetch.HeaderEntry{Name: name, Value: value})
	}
	err := fetch.FulfillRequest(ev.RequestID, int64(res.Status)).
		WithResponseHeaders(headers).
		WithBody(base64.StdEncoding.EncodeToString(res.Body)).
		Do(ctx)
	if err != nil {
		s.interceptFailed("fulfill", ev, err)
	}
}

// interceptFailed reports a paused request the browser would not release.
// The page sees it as a hung or failed request, so it goes to the console
// handlers where the run log picks it up. Errors after the tab is gone are
// dropped.
func (s *Session) interceptFailed(op string, ev *fetch.EventRequestPaused, err error) {
	if s.ctx.Err() != nil {
		return
	}
	target := string(ev.RequestID)
	if ev.Request != nil {
		target = ev.Request.Method + " " + ev.Request.URL
	}
	s.emitConsole(browser.ConsoleMessage{
		Level: "error",
		Text:  fmt.Sprintf("intercept %s %s: %v", op, target, err),
	})
}

func toRequest(ev *fetch.EventRequestPaused) browser.Request {
	req := browser.Request{
		ID:           string(ev.RequestID),
		ResourceType: string(ev.ResourceType),
	}
	if ev.Request == nil {
		return req
	}
	req.Method = ev.Request.Method
	req.URL = ev.Request.URL + ev.Request.URLFragment
	req.Headers = flattenHeaders(ev.Request.Headers)
	for _, entry := range ev.Request.PostDataEntries {
		if chunk, err := base64.StdEncoding.DecodeString(entry.Bytes); err == nil {
			req.Body = append(req.Body, chunk...)
		}
	}
	return req
}

func flattenHeaders(h network.Headers) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for k, v := range h {
		out[k] = fmt.Sprint(v)
	}
	return out
}

// Query evaluates the locator in the page and returns every match.
func (s *Session) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	script, err := buildLocateScript(loc)
	if err != nil {
		return nil, err
	}
	var found []browser.Element
	if err := s.run(ctx, chromedp.Evaluate(script, &found)); err != nil {
		return nil, err
	}
	return found, nil
}

type elementState struct {
	Attached bool `json:"attached"`
	Editable bool `json:"editable"`
}

func (s *Session) state(ctx context.Context, el browser.Element) (elementState, error) {
	var st elementState
	err := s.run(ctx, chromedp.Evaluate(attachedScript(el), &st))
	return st, err
}

// Click clicks the centre of el.
func (s *Session) Click(ctx context.Context, el browser.Element) error {
	st, err := s.state(ctx, el)
	if err != nil {
		return err
	}
	if !st.Attached {
		return browser.ErrElementDetached
	}
	return s.run(ctx, chromedp.Click(handleSelector(el), chromedp.ByQuery))
}

// Fill replaces the value of an input or textarea by typing into it.
func (s *Session) Fill(ctx context.Context, el browser.Element, value string) error {
	st, err := s.state(ctx, el)
	if err != nil {
		return err
	}
	if !st.Attached {
		return browser.ErrElementDetached
	}
	if !st.Editable {
		return browser.ErrNotEditable
	}
	sel := handleSelector(el)
	var ok bool
	return s.run(ctx,
		chromedp.Focus(sel, chromedp.ByQuery),
		chromedp.Evaluate(selectAllScript(el), &ok),
		chromedp.SendKeys(sel, value, chromedp.ByQuery),
	)
}

// Screenshot captures the viewport, or the whole document when fullPage is set.
func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	var buf []byte
	action := chromedp.CaptureScreenshot(&buf)
	if fullPage {
		action = chromedp.FullScreenshot(&buf, 100)
	}
	if err := s.run(ctx, action); err != nil {
		return nil, err
	}
	return buf, nil
}

// LocalStorage returns the current origin's localStorage.
func (s *Session) LocalStorage(ctx context.Context) (map[string]string, error) {
	out := map[string]string{}
	err := s.run(ctx, chromedp.Evaluate(localStorageScript, &out))
	return out, err
}

// Done is closed when the session is closed or the page crashed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close disposes of the page and its browser context.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.markDone()
	return nil
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *Session) isDone() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) ensureOpen() error {
	if s == nil {
		return browser.SessionClosedError("", nil)
	}
	if s.isDone() {
		return browser.SessionClosedError(s.id, nil)
	}
	return nil
}

// run executes actions bounded by the caller's context and the operation timeout.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := s.withOperationTimeout(ctx)
	defer cancel()
	runCtx, stop := s.bind(ctx)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if s.isDone() {
			return browser.SessionClosedError(s.id, err)
		}
		return err
	}
	return nil
}

// bind derives a context from the page context that also ends with ctx.
// chromedp only executes actions on contexts descended from the page.
func (s *Session) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if deadline, ok := ctx.Deadline(); ok {
		runCtx, cancel = context.WithDeadline(s.ctx, deadline)
	} else {
		runCtx, cancel = context.WithCancel(s.ctx)
	}
	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

func (s *Session) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.operationTimeout)
}
