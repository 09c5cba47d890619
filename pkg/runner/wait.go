package runner

import (
	"context"
	"errors"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
	"github.com/ashparshp/hairone/pkg/logging"
	"github.com/ashparshp/hairone/pkg/netmock"
)

// poll runs check until it reports done, fails, or timeout passes. Expiry
// returns errWaitExpired no earlier than timeout after the first check.
func (x *execution) poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return errWaitExpired
		}
		timer := time.NewTimer(min(x.runner.pollInterval, remaining))
		select {
		case <-timer.C:
		case <-x.sess.Done():
			timer.Stop()
			return browser.SessionClosedError(x.sess.ID(), nil)
		case <-ctx.Done():
			timer.Stop()
			return cancelled(ctx)
		}
	}
}

// pick applies the locator's picker to the visible matches. It also returns
// how many visible matches there were.
func pick(loc browser.Locator, matches []browser.Element) (*browser.Element, int) {
	visible := make([]browser.Element, 0, len(matches))
	for _, m := range matches {
		if m.Visible {
			visible = append(visible, m)
		}
	}
	n := len(visible)
	if n == 0 {
		return nil, 0
	}
	switch loc.Pick {
	case browser.PickLast:
		return &visible[n-1], n
	case browser.PickNth:
		if loc.Index < n {
			return &visible[loc.Index], n
		}
		return nil, n
	case browser.PickUnique:
		if n == 1 {
			return &visible[0], n
		}
		return nil, n
	}
	return &visible[0], n
}

// find queries once. Query errors other than a closed session are treated as
// "not there yet": the page may be mid-navigation.
func (x *execution) find(ctx context.Context, loc browser.Locator) (*browser.Element, int, error) {
	matches, err := x.sess.Query(ctx, loc)
	if err != nil {
		if browser.IsSessionClosed(err) {
			return nil, 0, err
		}
		x.log.Debug(logging.CategoryStep, "query_retry", err.Error(), map[string]any{"locator": loc.String()})
		return nil, 0, nil
	}
	el, n := pick(loc, matches)
	return el, n, nil
}

func present(loc browser.Locator, el *browser.Element, visible int) bool {
	return el != nil || (loc.Pick == browser.PickUnique && visible > 0)
}

func notFound(loc browser.Locator, timeout time.Duration, code herrors.ErrorCode, visible int) error {
	if loc.Pick == browser.PickUnique && visible > 1 {
		return herrors.Newf(herrors.ErrCodeLocatorAmbiguous, "%d visible elements match %s", visible, loc).
			WithContext("locator", loc.String()).
			WithContext("timeout", timeout.String())
	}
	return herrors.Newf(code, "%s not visible within %s", loc, timeout).
		WithContext("locator", loc.String()).
		WithContext("visible", visible)
}

func (x *execution) waitVisible(ctx context.Context, loc browser.Locator, timeout time.Duration, code herrors.ErrorCode) (browser.Element, error) {
	var found *browser.Element
	var seen int
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		el, n, err := x.find(ctx, loc)
		if err != nil {
			return false, err
		}
		found, seen = el, n
		return el != nil, nil
	})
	if errors.Is(err, errWaitExpired) {
		return browser.Element{}, notFound(loc, timeout, code, seen)
	}
	if err != nil {
		return browser.Element{}, err
	}
	return *found, nil
}

func (x *execution) waitHidden(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		el, n, err := x.find(ctx, loc)
		if err != nil {
			return false, err
		}
		return !present(loc, el, n), nil
	})
	if errors.Is(err, errWaitExpired) {
		return herrors.Newf(herrors.ErrCodeLocatorTimeout, "%s still visible after %s", loc, timeout).
			WithContext("locator", loc.String())
	}
	return err
}

// holdAbsent passes when loc stays absent for the whole timeout and fails as
// soon as it shows up.
func (x *execution) holdAbsent(ctx context.Context, loc browser.Locator, timeout time.Duration) error {
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		el, n, err := x.find(ctx, loc)
		if err != nil {
			return false, err
		}
		return present(loc, el, n), nil
	})
	switch {
	case errors.Is(err, errWaitExpired):
		return nil
	case err != nil:
		return err
	}
	return herrors.Newf(herrors.ErrCodeAssertionFailed, "%s is visible but should not be", loc).
		WithContext("locator", loc.String())
}

func (x *execution) waitCount(ctx context.Context, loc browser.Locator, want int, atLeast bool, timeout time.Duration) error {
	var seen int
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		_, n, err := x.find(ctx, loc)
		if err != nil {
			return false, err
		}
		seen = n
		if atLeast {
			return n >= want, nil
		}
		return n == want, nil
	})
	if errors.Is(err, errWaitExpired) {
		op := "exactly"
		if atLeast {
			op = "at least"
		}
		return herrors.Newf(herrors.ErrCodeAssertionFailed, "expected %s %d of %s, saw %d", op, want, loc, seen).
			WithContext("locator", loc.String())
	}
	return err
}

func (x *execution) waitURL(ctx context.Context, glob string, timeout time.Duration) error {
	var last string
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		u, err := x.sess.URL(ctx)
		if err != nil {
			if browser.IsSessionClosed(err) {
				return false, err
			}
			return false, nil
		}
		last = u
		ok, err := netmock.MatchURL(glob, u)
		if err != nil {
			return false, herrors.Wrap(err, herrors.ErrCodeScenarioInvalid, "invalid url pattern")
		}
		return ok, nil
	})
	if errors.Is(err, errWaitExpired) {
		return herrors.Newf(herrors.ErrCodeLocatorTimeout, "url did not match %s within %s", glob, timeout).
			WithContext("url", last)
	}
	return err
}

// act resolves loc and runs fn on it, retrying while the element detaches
// between lookup and action.
func (x *execution) act(ctx context.Context, action string, loc browser.Locator, timeout time.Duration, fn func(context.Context, browser.Element) error) error {
	start := time.Now()
	var seen int
	err := x.poll(ctx, timeout, func(ctx context.Context) (bool, error) {
		el, n, err := x.find(ctx, loc)
		if err != nil {
			return false, err
		}
		seen = n
		if el == nil {
			return false, nil
		}
		err = fn(ctx, *el)
		switch {
		case err == nil:
			return true, nil
		case errors.Is(err, browser.ErrElementDetached):
			return false, nil
		case errors.Is(err, browser.ErrNotEditable):
			return false, herrors.Wrap(err, herrors.ErrCodeAssertionFailed, "element is not editable").
				WithContext("locator", loc.String())
		}
		return false, err
	})
	if errors.Is(err, errWaitExpired) {
		err = notFound(loc, timeout, herrors.ErrCodeLocatorTimeout, seen)
	}
	x.runner.metrics.RecordAction(x.sess.ID(), action, err == nil, time.Since(start))
	return err
}
