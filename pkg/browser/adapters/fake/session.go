package fake

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/ashparshp/hairone/pkg/browser"
)

const maxRedirects = 10

type initScript struct {
	id     browser.ScriptID
	source string
}

// Session is one fake browser context with one page.
type Session struct {
	id  string
	cfg browser.SessionConfig
	rt  *Runtime

	mu          sync.Mutex
	storage     map[string]string
	scripts     []initScript
	nextScript  int
	interceptor browser.Interceptor
	console     browser.ConsoleHandler
	requests    []browser.Request
	url         string
	page        Page
	view        *View
	generation  int

	done       chan struct{}
	closeOnce  sync.Once
	closeCalls atomic.Int32
}

func newSession(rt *Runtime, cfg browser.SessionConfig) *Session {
	return &Session{
		id:      cfg.SessionID,
		cfg:     cfg,
		rt:      rt,
		storage: make(map[string]string),
		url:     "about:blank",
		done:    make(chan struct{}),
	}
}

func (s *Session) ID() string                    { return s.id }
func (s *Session) Config() browser.SessionConfig { return s.cfg }
func (s *Session) Done() <-chan struct{}         { return s.done }

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) ensureOpen() error {
	if s.isClosed() {
		return browser.SessionClosedError(s.id, nil)
	}
	return nil
}

// Navigate loads rawURL, running init scripts and OnLoad before returning.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	if err := s.wait(ctx, rawURL); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureOpen(); err != nil {
		return err
	}
	return s.load(rawURL)
}

// Reload loads the current URL again.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	current := s.url
	s.mu.Unlock()
	return s.Navigate(ctx, current)
}

func (s *Session) wait(ctx context.Context, rawURL string) error {
	if err := ctx.Err(); err != nil {
		return browser.NavigationError(rawURL, err)
	}
	if s.rt.navDelay <= 0 {
		return nil
	}
	timer := time.NewTimer(s.rt.navDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-s.done:
		return browser.SessionClosedError(s.id, nil)
	case <-ctx.Done():
		return browser.NavigationError(rawURL, ctx.Err())
	}
}

func (s *Session) URL(ctx context.Context) (string, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.url, nil
}

// load replaces the document. Callers hold s.mu.
func (s *Session) load(rawURL string) error {
	target := rawURL
	for hop := 0; hop < maxRedirects; hop++ {
		u, err := s.resolve(target)
		if err != nil {
			return browser.NavigationError(target, err)
		}
		if u.String() != "about:blank" {
			if origin := u.Scheme + "://" + u.Host; origin != s.rt.app.Origin() {
				return browser.NavigationError(target, fmt.Errorf("net::ERR_CONNECTION_REFUSED at %s", origin))
			}
		}
		s.generation++
		s.url = u.String()

		if u.String() == "about:blank" {
			s.page = Page{}
			s.view = s.newView(u, nil)
			return nil
		}

		s.runInitScripts()
		page, params := s.rt.app.match(u.Path)
		v := s.newView(u, params)
		s.page = page
		s.view = v
		if page.OnLoad != nil {
			page.OnLoad(v)
		}
		if v.redirect == "" {
			s.loadSubresources(v)
			return nil
		}
		target = v.redirect
	}
	return browser.NavigationError(rawURL, fmt.Errorf("too many redirects"))
}

// settle follows a redirect requested by a callback. Callers hold s.mu.
func (s *Session) settle(v *View) error {
	if v.redirect == "" {
		s.loadSubresources(v)
		return nil
	}
	target := v.redirect
	v.redirect = ""
	return s.load(target)
}

func (s *Session) newView(u *url.URL, params map[string]string) *View {
	return &View{
		sess:       s,
		generation: s.generation,
		url:        u,
		params:     params,
		state:      make(map[string]any),
		inputs:     make(map[string]string),
		fetched:    make(map[string]bool),
	}
}

func (s *Session) resolve(target string) (*url.URL, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return nil, err
	}
	if ref.IsAbs() {
		return ref, nil
	}
	base, err := url.Parse(s.cfg.ResolveURL("/"))
	if err != nil || base.Host == "" {
		base, _ = url.Parse(s.rt.app.Origin() + "/")
	}
	if current, err := url.Parse(s.url); err == nil && current.IsAbs() && current.Scheme != "about" {
		base = current
	}
	return base.ResolveReference(ref), nil
}

func (s *Session) runInitScripts() {
	for _, script := range s.scripts {
		applyStorageScript(s.storage, script.source)
	}
}

// loadSubresources requests every image once per load, like a browser would.
func (s *Session) loadSubresources(v *View) {
	doc, err := s.document()
	if err != nil {
		return
	}
	doc.Find("img[src]").Each(func(_ int, sel *goquery.Selection) {
		src, _ := sel.Attr("src")
		ref, err := url.Parse(src)
		if err != nil {
			return
		}
		abs := v.url.ResolveReference(ref).String()
		if v.fetched[abs] {
			return
		}
		v.fetched[abs] = true
		s.roundTrip(browser.Request{
			ID:           strconv.Itoa(len(s.requests) + 1),
			Method:       "GET",
			URL:          abs,
			ResourceType: "Image",
		})
	})
}

// roundTrip sends req through the interceptor, then upstream. Callers hold s.mu.
func (s *Session) roundTrip(req browser.Request) browser.Fulfillment {
	s.requests = append(s.requests, req)
	if s.interceptor != nil {
		if f := s.interceptor(req); f != nil {
			return *f
		}
	}
	return s.rt.upstream(req)
}

func (s *Session) AddInitScript(ctx context.Context, source string) (browser.ScriptID, error) {
	if err := s.ensureOpen(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextScript++
	id := browser.ScriptID(strconv.Itoa(s.nextScript))
	s.scripts = append(s.scripts, initScript{id: id, source: source})
	return id, nil
}

func (s *Session) RemoveInitScript(ctx context.Context, id browser.ScriptID) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, script := range s.scripts {
		if script.id == id {
			s.scripts = append(s.scripts[:i], s.scripts[i+1:]...)
			return nil
		}
	}
	return nil
}

func (s *Session) SetInterceptor(ctx context.Context, fn browser.Interceptor) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interceptor = fn
	return nil
}

func (s *Session) OnConsole(fn browser.ConsoleHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.console = fn
}

// document renders the current view. Callers hold s.mu.
func (s *Session) document() (*goquery.Document, error) {
	body := ""
	if s.page.Render != nil && s.view != nil {
		body = s.page.Render(s.view)
	}
	html := fmt.Sprintf(`<html><head></head><body data-color-scheme=%q>%s</body></html>`, s.cfg.ColorScheme, body)
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}

func (s *Session) Query(ctx context.Context, loc browser.Locator) ([]browser.Element, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	return queryDocument(doc, loc), nil
}

// lookup finds the live node behind el in a fresh render. Callers hold s.mu.
func (s *Session) lookup(el browser.Element) (*goquery.Selection, error) {
	doc, err := s.document()
	if err != nil {
		return nil, err
	}
	idx, err := strconv.Atoi(el.Handle)
	if err != nil {
		return nil, browser.ErrElementDetached
	}
	sel := doc.Find("body *").Eq(idx)
	if sel.Length() == 0 || goquery.NodeName(sel) != el.Tag {
		return nil, browser.ErrElementDetached
	}
	return sel, nil
}

// Click runs the data-action handler of the element or its closest
// ancestor, or follows the closest link.
func (s *Session) Click(ctx context.Context, el browser.Element) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(el)
	if err != nil {
		return err
	}
	if !isVisible(sel) {
		return fmt.Errorf("element %s is not visible", el.Tag)
	}
	if _, disabled := sel.Attr("disabled"); disabled {
		return fmt.Errorf("element %s is disabled", el.Tag)
	}

	if target := sel.Closest("[data-action]"); target.Length() > 0 {
		name, _ := target.Attr("data-action")
		if handler, ok := s.page.Actions[name]; ok {
			handler(s.view)
			return s.settle(s.view)
		}
		return nil
	}
	if link := sel.Closest("a[href]"); link.Length() > 0 {
		href, _ := link.Attr("href")
		return s.load(href)
	}
	return nil
}

// Fill stores value for the input. Inputs with data-on-fill run that action
// afterwards, which is how inputs that react to change events are modelled.
func (s *Session) Fill(ctx context.Context, el browser.Element, value string) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sel, err := s.lookup(el)
	if err != nil {
		return err
	}
	switch goquery.NodeName(sel) {
	case "input", "textarea":
	default:
		return browser.ErrNotEditable
	}
	if _, readonly := sel.Attr("readonly"); readonly {
		return browser.ErrNotEditable
	}
	s.view.inputs[inputKey(sel, el.Handle)] = value

	if action, ok := sel.Attr("data-on-fill"); ok {
		if handler, ok := s.page.Actions[action]; ok {
			handler(s.view)
			return s.settle(s.view)
		}
	}
	return nil
}

func inputKey(sel *goquery.Selection, fallback string) string {
	for _, attr := range []string{"name", "id", "placeholder"} {
		if v, ok := sel.Attr(attr); ok && v != "" {
			return v
		}
	}
	return fallback
}

func (s *Session) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	height := s.cfg.Viewport.Height
	if fullPage {
		if doc, err := s.document(); err == nil {
			height = max(height, contentHeight(doc))
		}
	}
	return renderPNG(s.cfg.Viewport.Width, height, s.cfg.ColorScheme)
}

func (s *Session) LocalStorage(ctx context.Context) (map[string]string, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.storage))
	for k, v := range s.storage {
		out[k] = v
	}
	return out, nil
}

// Requests returns every request the page issued, in order.
func (s *Session) Requests() []browser.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]browser.Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CloseCalls reports how many times Close was invoked.
func (s *Session) CloseCalls() int { return int(s.closeCalls.Load()) }

// Crash ends the session as if the renderer died.
func (s *Session) Crash() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) Close() error {
	s.closeCalls.Add(1)
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}
