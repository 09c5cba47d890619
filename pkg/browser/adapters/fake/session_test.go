package fake

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
	herrors "github.com/ashparshp/hairone/pkg/errors"
)

const origin = "http://app.test"

func testApp() *App {
	return NewApp(origin).
		Handle("/", Page{Render: func(v *View) string {
			token, _ := v.Storage("token")
			return `<h1>HairOne</h1><p id="token">` + token + `</p>` +
				`<input placeholder="9876543210" name="phone">` +
				`<div data-action="go"><span>Continue</span></div>` +
				`<a href="/about">About us</a>` +
				`<p hidden>Secret</p>`
		}, Actions: map[string]func(*View){
			"go": func(v *View) { v.Redirect("/next?phone=" + v.Input("phone")) },
		}}).
		Handle("/next", Page{Render: func(v *View) string {
			return `<p>Phone ` + v.URL().Query().Get("phone") + `</p>`
		}}).
		Handle("/about", Page{Render: func(v *View) string { return `<h2>About</h2>` }}).
		Handle("/shops/:id", Page{
			OnLoad: func(v *View) {
				var out struct {
					Name string `json:"name"`
				}
				if _, err := v.FetchJSON("GET", "/api/shops/"+v.Param("id"), nil, &out); err != nil {
					v.Set("error", err.Error())
					return
				}
				v.Set("name", out.Name)
			},
			Render: func(v *View) string {
				if e := v.GetString("error"); e != "" {
					return `<p>Failed to load</p>`
				}
				return `<h1>` + v.GetString("name") + `</h1><img src="/img/a.png">`
			},
		}).
		Handle("/slow", Page{
			OnLoad: func(v *View) {
				v.After(150*time.Millisecond, func(v *View) { v.Set("ready", true) })
			},
			Render: func(v *View) string {
				if v.Get("ready") == true {
					return `<p>Ready</p>`
				}
				return `<p>Loading</p>`
			},
		})
}

func openSession(t *testing.T, opts ...Option) (*Runtime, *Session) {
	t.Helper()
	rt := NewRuntime(testApp(), opts...)
	cfg := browser.DefaultSessionConfig()
	cfg.SessionID = "s1"
	cfg.BaseURL = origin
	sess, err := rt.NewSession(context.Background(), cfg)
	require.NoError(t, err)
	return rt, sess.(*Session)
}

func TestNavigateAndQuery(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()

	require.NoError(t, sess.Navigate(ctx, "/"))
	url, err := sess.URL(ctx)
	require.NoError(t, err)
	assert.Equal(t, origin+"/", url)

	els, err := sess.Query(ctx, browser.Text("hairone"))
	require.NoError(t, err)
	require.Len(t, els, 1, "text match is case-insensitive and picks the innermost element")
	assert.Equal(t, "h1", els[0].Tag)

	els, err = sess.Query(ctx, browser.Text("Secret"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.False(t, els[0].Visible)

	els, err = sess.Query(ctx, browser.Placeholder("9876543210"))
	require.NoError(t, err)
	require.Len(t, els, 1)
	assert.Equal(t, "input", els[0].Tag)

	els, err = sess.Query(ctx, browser.Role("link", "about"))
	require.NoError(t, err)
	require.Len(t, els, 1)

	els, err = sess.Query(ctx, browser.CSS("input[name=phone]"))
	require.NoError(t, err)
	assert.Len(t, els, 1)

	els, err = sess.Query(ctx, browser.ExactText("Continu"))
	require.NoError(t, err)
	assert.Empty(t, els)
}

func TestFillAndClickRedirects(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	inputs, err := sess.Query(ctx, browser.Placeholder("9876543210"))
	require.NoError(t, err)
	require.NoError(t, sess.Fill(ctx, inputs[0], "1111111111"))

	buttons, err := sess.Query(ctx, browser.Text("Continue"))
	require.NoError(t, err)
	require.Len(t, buttons, 1)
	require.NoError(t, sess.Click(ctx, buttons[0]))

	url, _ := sess.URL(ctx)
	assert.Equal(t, origin+"/next?phone=1111111111", url)
	els, _ := sess.Query(ctx, browser.Text("Phone 1111111111"))
	assert.Len(t, els, 1)
}

func TestFillRejectsNonInputs(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	els, _ := sess.Query(ctx, browser.Text("HairOne"))
	err := sess.Fill(ctx, els[0], "x")
	assert.ErrorIs(t, err, browser.ErrNotEditable)
}

func TestClickLinkNavigates(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	links, _ := sess.Query(ctx, browser.Role("link", ""))
	require.NoError(t, sess.Click(ctx, links[0]))
	url, _ := sess.URL(ctx)
	assert.Equal(t, origin+"/about", url)
}

func TestStaleHandleIsDetached(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))
	els, _ := sess.Query(ctx, browser.Placeholder("9876543210"))

	require.NoError(t, sess.Navigate(ctx, "/about"))
	err := sess.Click(ctx, els[0])
	assert.ErrorIs(t, err, browser.ErrElementDetached)
}

func TestInitScriptsApplyOnNextLoadOnly(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	id, err := sess.AddInitScript(ctx, `(() => { try { localStorage.setItem("token", "mock-token"); localStorage.setItem('user', '{"role":"user"}'); } catch (e) {} })();`)
	require.NoError(t, err)

	storage, _ := sess.LocalStorage(ctx)
	assert.Empty(t, storage, "init scripts must not touch the current document")

	require.NoError(t, sess.Reload(ctx))
	storage, _ = sess.LocalStorage(ctx)
	assert.Equal(t, "mock-token", storage["token"])
	assert.Equal(t, `{"role":"user"}`, storage["user"])

	require.NoError(t, sess.RemoveInitScript(ctx, id))
	_, err = sess.AddInitScript(ctx, `localStorage.removeItem("user");`)
	require.NoError(t, err)
	require.NoError(t, sess.Reload(ctx))
	storage, _ = sess.LocalStorage(ctx)
	assert.NotContains(t, storage, "user")
	assert.Equal(t, "mock-token", storage["token"], "storage persists across loads")
}

func TestFetchGoesThroughInterceptor(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()

	require.NoError(t, sess.SetInterceptor(ctx, func(req browser.Request) *browser.Fulfillment {
		if strings.HasSuffix(req.URL, "/api/shops/shop123") {
			return &browser.Fulfillment{Status: 200, Body: []byte(`{"name":"Gallery Test Shop"}`)}
		}
		return nil
	}))
	require.NoError(t, sess.Navigate(ctx, "/shops/shop123"))

	els, _ := sess.Query(ctx, browser.Text("Gallery Test Shop"))
	assert.Len(t, els, 1)

	reqs := sess.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "GET", reqs[0].Method)
	assert.Equal(t, origin+"/api/shops/shop123", reqs[0].URL)
	assert.Equal(t, "Image", reqs[1].ResourceType)
	assert.Equal(t, origin+"/img/a.png", reqs[1].URL)
}

func TestUnmatchedFetchHitsOfflineUpstream(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/shops/shop123"))
	els, _ := sess.Query(ctx, browser.Text("Failed to load"))
	assert.Len(t, els, 1)
}

func TestDeferredRender(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/slow"))

	els, _ := sess.Query(ctx, browser.Text("Ready"))
	assert.Empty(t, els)

	assert.Eventually(t, func() bool {
		els, _ := sess.Query(ctx, browser.Text("Ready"))
		return len(els) == 1
	}, time.Second, 20*time.Millisecond)
}

func TestNavigationTimeout(t *testing.T) {
	_, sess := openSession(t, WithNavigationDelay(time.Second))
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := sess.Navigate(ctx, "/")
	require.Error(t, err)
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeNavigationTimeout), "got %v", err)
}

func TestForeignOriginFails(t *testing.T) {
	_, sess := openSession(t)
	err := sess.Navigate(context.Background(), "http://elsewhere.test/")
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeNavigationFailed), "got %v", err)
}

func TestCrashAndClose(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	sess.Crash()
	assert.True(t, browser.IsClosed(sess))

	_, err := sess.Query(ctx, browser.Text("HairOne"))
	assert.True(t, browser.IsSessionClosed(err), "got %v", err)
	_, err = sess.Screenshot(ctx, false)
	assert.True(t, browser.IsSessionClosed(err))

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
	assert.Equal(t, 2, sess.CloseCalls())
}

func TestScreenshotDimensions(t *testing.T) {
	_, sess := openSession(t)
	ctx := context.Background()
	require.NoError(t, sess.Navigate(ctx, "/"))

	data, err := sess.Screenshot(ctx, false)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 1280, img.Bounds().Dx())
	assert.Equal(t, 720, img.Bounds().Dy())
}

func TestLaunchError(t *testing.T) {
	rt := NewRuntime(testApp(), WithLaunchError(errors.New("chrome not found")))
	_, err := rt.NewSession(context.Background(), browser.DefaultSessionConfig())
	assert.EqualError(t, err, "chrome not found")
}
