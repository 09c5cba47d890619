package cdp

import (
	"context"
	"errors"
	"testing"

	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
)

func TestInterceptFailedReachesConsole(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{id: "s1", ctx: ctx, cancel: cancel}
	var got []browser.ConsoleMessage
	s.OnConsole(func(m browser.ConsoleMessage) { got = append(got, m) })

	ev := &fetch.EventRequestPaused{
		RequestID: "r1",
		Request:   &network.Request{Method: "POST", URL: "http://api.test/api/auth/otp"},
	}
	s.interceptFailed("fulfill", ev, errors.New("invalid InterceptionId"))
	require.Len(t, got, 1)
	assert.Equal(t, "error", got[0].Level)
	assert.Equal(t, "intercept fulfill POST http://api.test/api/auth/otp: invalid InterceptionId", got[0].Text)

	s.interceptFailed("continue", &fetch.EventRequestPaused{RequestID: "r2"}, errors.New("boom"))
	require.Len(t, got, 2)
	assert.Contains(t, got[1].Text, "intercept continue r2: boom")

	cancel()
	s.interceptFailed("continue", ev, errors.New("target closed"))
	assert.Len(t, got, 2, "errors after the tab is gone are dropped")
}
