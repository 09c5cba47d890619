package browser

import "context"

// Runtime creates browser sessions on one engine.
type Runtime interface {
	NewSession(ctx context.Context, cfg SessionConfig) (BrowserSession, error)
	Close() error
}

// BrowserSession is the port implemented by browser runtime adapters.
//
// A session is one isolated context with one page. Calls are not expected to
// run concurrently against the same session.
type BrowserSession interface {
	ID() string
	Config() SessionConfig

	// Navigate loads url and waits for the load event.
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	URL(ctx context.Context) (string, error)

	// AddInitScript schedules source to run before page scripts on every
	// subsequent document. It has no effect on the current document.
	AddInitScript(ctx context.Context, source string) (ScriptID, error)
	RemoveInitScript(ctx context.Context, id ScriptID) error

	// SetInterceptor routes every later request through fn. A nil fn disables
	// interception.
	SetInterceptor(ctx context.Context, fn Interceptor) error
	OnConsole(fn ConsoleHandler)

	// Query returns all elements matching the locator in document order.
	Query(ctx context.Context, loc Locator) ([]Element, error)
	Click(ctx context.Context, el Element) error
	Fill(ctx context.Context, el Element, value string) error

	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	LocalStorage(ctx context.Context) (map[string]string, error)

	// Done is closed once the session is closed or its target crashed.
	Done() <-chan struct{}
	Close() error
}

// IsClosed reports whether the session has ended.
func IsClosed(sess BrowserSession) bool {
	if sess == nil {
		return true
	}
	select {
	case <-sess.Done():
		return true
	default:
		return false
	}
}
