//go:build integration

package cdp

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
)

const loginPage = `<!doctype html>
<html><body>
<h1>HairOne</h1>
<input placeholder="9876543210" name="phone">
<button id="go" onclick="document.getElementById('out').textContent = 'Edit'; fetch('/api/auth/otp', {method: 'POST'}).then(r => r.json()).then(j => { document.getElementById('msg').textContent = j.message; });">Continue</button>
<p id="out"></p><p id="msg"></p>
<script>document.body.dataset.token = localStorage.getItem("token") || "";</script>
</body></html>`

func startSession(t *testing.T) (*Session, string) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, loginPage)
	}))
	t.Cleanup(srv.Close)

	rt, err := NewRuntime(Config{ExecPath: os.Getenv("UIVERIFY_CHROME_PATH"), Headless: true, NoSandbox: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	cfg := browser.SessionConfig{SessionID: "integration", BaseURL: srv.URL}.WithDefaults()
	sess, err := rt.NewSession(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return sess.(*Session), srv.URL
}

func TestSessionInterceptsAndClicks(t *testing.T) {
	sess, base := startSession(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	require.NoError(t, sess.SetInterceptor(ctx, func(req browser.Request) *browser.Fulfillment {
		if req.URL == base+"/api/auth/otp" {
			return &browser.Fulfillment{Status: 200, Headers: map[string]string{"Content-Type": "application/json"}, Body: []byte(`{"message":"OTP Sent"}`)}
		}
		return nil
	}))
	_, err := sess.AddInitScript(ctx, `localStorage.setItem("token", "mock-admin-token")`)
	require.NoError(t, err)
	require.NoError(t, sess.Navigate(ctx, base+"/login"))

	inputs, err := sess.Query(ctx, browser.Placeholder("9876543210"))
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	require.NoError(t, sess.Fill(ctx, inputs[0], "9876543210"))

	buttons, err := sess.Query(ctx, browser.Role("button", "Continue"))
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	require.NoError(t, sess.Click(ctx, buttons[0]))

	require.Eventually(t, func() bool {
		found, err := sess.Query(ctx, browser.ExactText("OTP Sent"))
		return err == nil && len(found) == 1 && found[0].Visible
	}, 10*time.Second, 100*time.Millisecond)

	storage, err := sess.LocalStorage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mock-admin-token", storage["token"])

	png, err := sess.Screenshot(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}

func TestSessionCloseEndsDone(t *testing.T) {
	sess, _ := startSession(t)
	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	select {
	case <-sess.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed")
	}
	err := sess.Navigate(context.Background(), "about:blank")
	assert.True(t, browser.IsSessionClosed(err))
}
