package browser

import (
	"context"
	"errors"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

var (
	ErrUnavailable     = errors.New("browser runtime unavailable")
	ErrSessionClosed   = errors.New("browser session closed")
	ErrElementDetached = errors.New("element no longer attached to the page")
	ErrNotEditable     = errors.New("element is not editable")
)

// SessionClosedError wraps err as a hard SESSION_CLOSED failure.
func SessionClosedError(sessionID string, err error) error {
	if err == nil {
		err = ErrSessionClosed
	}
	return herrors.Wrap(err, herrors.ErrCodeSessionClosed, "browser session is gone").
		WithContext("session_id", sessionID)
}

// NavigationError classifies a failed navigation. Deadline expiry becomes
// NAVIGATION_TIMEOUT, anything else NAVIGATION_FAILED.
func NavigationError(url string, err error) error {
	if err == nil {
		return nil
	}
	code := herrors.ErrCodeNavigationFailed
	msg := "navigation failed"
	if errors.Is(err, context.DeadlineExceeded) {
		code = herrors.ErrCodeNavigationTimeout
		msg = "navigation timed out"
	}
	return herrors.Wrap(err, code, msg).WithContext("url", url)
}

// LaunchError marks an engine start-up failure as an environment precondition.
func LaunchError(err error) error {
	if err == nil {
		return nil
	}
	if herrors.GetCode(err) == herrors.ErrCodeEngineLaunch {
		return err
	}
	return herrors.Wrap(err, herrors.ErrCodeEngineLaunch, "failed to launch browser engine").
		WithRemediation("install Chrome/Chromium or set UIVERIFY_CHROME_PATH", "or point UIVERIFY_CDP_URL at a running browser")
}

// IsSessionClosed reports whether err means the session is no longer usable.
func IsSessionClosed(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, ErrSessionClosed) || herrors.IsCode(err, herrors.ErrCodeSessionClosed)
}
