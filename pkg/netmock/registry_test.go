package netmock

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/browser/adapters/fake"
	herrors "github.com/ashparshp/hairone/pkg/errors"
)

func TestRegisterRejectsInvalidPatterns(t *testing.T) {
	r := New()

	err := r.Register("", JSON(nil))
	assert.True(t, herrors.IsCode(err, herrors.ErrCodePatternInvalid))

	err = r.Register("**/api/[unclosed", JSON(nil))
	assert.True(t, herrors.IsCode(err, herrors.ErrCodePatternInvalid))
	assert.Equal(t, herrors.ClassConfig, herrors.Class(err))

	err = r.Register("**/api", nil)
	assert.True(t, herrors.IsCode(err, herrors.ErrCodeInvalidInput))
	assert.Empty(t, r.Routes())
}

func TestFirstMatchWins(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("**/api/admin/stats", JSON(map[string]int{"shops": 4})))
	require.NoError(t, r.Register("**/api/admin/*", JSON([]any{})))
	require.NoError(t, r.Register("**", Text(http.StatusNotFound, "blocked")))

	resp, ok := r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/admin/stats"})
	require.True(t, ok)
	assert.JSONEq(t, `{"shops":4}`, string(resp.Body))
	assert.Equal(t, "application/json", resp.ContentType)

	resp, ok = r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/admin/shops"})
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(resp.Body))

	resp, ok = r.Handle(Request{Method: "GET", URL: "http://cdn.example.com/logo.png"})
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, resp.Status)

	log := r.Log()
	require.Len(t, log, 3)
	assert.Equal(t, "**/api/admin/stats", log[0].Pattern)
	assert.Equal(t, "**/api/admin/*", log[1].Pattern)
	assert.Equal(t, "**", log[2].Pattern)
}

func TestUnmatchedContinues(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("**/api/auth/otp", JSON(map[string]string{"message": "OTP Sent"})))

	_, ok := r.Handle(Request{Method: "GET", URL: "http://localhost:8081/assets/app.js"})
	assert.False(t, ok)

	log := r.Log()
	require.Len(t, log, 1)
	assert.False(t, log[0].Mocked)
	assert.Empty(t, r.Mocked())
}

func TestGlobIgnoresQueryAndScheme(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("**/api/shops/shop123/finance/summary*", JSON(map[string]int{"totalRevenue": 0})))
	require.NoError(t, r.Register("https://api.example.com/v1/*", JSON("v1")))

	_, ok := r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/shops/shop123/finance/summary?range=week&from=/x"})
	assert.True(t, ok)
	_, ok = r.Handle(Request{Method: "GET", URL: "http://api.example.com/v1/ping"})
	assert.True(t, ok, "scheme is not part of the match")
	_, ok = r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/shops/shop124/finance/summary"})
	assert.False(t, ok)
}

func TestMethodRestriction(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMethod("post", "**/api/auth/verify", JSON(map[string]string{"token": "t"})))

	_, ok := r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/auth/verify"})
	assert.False(t, ok)
	resp, ok := r.Handle(Request{Method: "POST", URL: "http://localhost:5000/api/auth/verify"})
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestPreflightAnsweredForMockedURL(t *testing.T) {
	r := New()
	calls := 0
	require.NoError(t, r.RegisterMethod("POST", "**/api/auth/otp", ResponderFunc(func(Request) (Response, error) {
		calls++
		return Response{}, nil
	})))

	resp, ok := r.Handle(Request{Method: "OPTIONS", URL: "http://localhost:5000/api/auth/otp"})
	require.True(t, ok)
	assert.Equal(t, http.StatusNoContent, resp.Status)
	assert.Zero(t, calls)
}

func TestOptionsRoutePreferredOverPreflight(t *testing.T) {
	r := New()
	require.NoError(t, r.RegisterMethod("POST", "**/api/auth/otp", JSON(map[string]string{"message": "OTP Sent"})))
	require.NoError(t, r.RegisterMethod("OPTIONS", "**/api/auth/otp", ResponderFunc(func(Request) (Response, error) {
		return Response{Status: http.StatusOK, Headers: map[string]string{"Access-Control-Allow-Methods": "POST"}}, nil
	})))

	route, _, ok := r.Match("options", "http://localhost:5000/api/auth/otp")
	require.True(t, ok)
	assert.Equal(t, http.MethodOptions, route.Method)

	resp, ok := r.Handle(Request{Method: "OPTIONS", URL: "http://localhost:5000/api/auth/otp"})
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "POST", resp.Headers["Access-Control-Allow-Methods"])

	resp, ok = r.Handle(Request{Method: "POST", URL: "http://localhost:5000/api/auth/otp"})
	require.True(t, ok)
	assert.JSONEq(t, `{"message":"OTP Sent"}`, string(resp.Body))
}

func TestPathParams(t *testing.T) {
	r := New()
	require.NoError(t, r.Register("**/api/shops/:shopId/finance/:kind", ResponderFunc(func(req Request) (Response, error) {
		return Text(http.StatusOK, req.Param("shopId")+"/"+req.Param("kind")), nil
	})))

	resp, ok := r.Handle(Request{Method: "GET", URL: "http://localhost:5000/api/shops/shop123/finance/summary?x=1"})
	require.True(t, ok)
	assert.Equal(t, "shop123/summary", string(resp.Body))
	assert.Equal(t, "text/plain; charset=utf-8", resp.ContentType)
}

func TestResponderFailureIsIsolated(t *testing.T) {
	metrics := browser.NewMetrics()
	r := New(WithMetrics(metrics))
	require.NoError(t, r.Register("**/api/admin/stats", ResponderFunc(func(Request) (Response, error) {
		return Response{}, errors.New("fixture missing")
	})))
	require.NoError(t, r.Register("**/api/admin/shops", ResponderFunc(func(Request) (Response, error) {
		panic("nil map")
	})))
	require.NoError(t, r.Register("**/api/admin/applications", JSON([]any{})))

	resp, ok := r.Handle(Request{Method: "GET", URL: "http://h/api/admin/stats"})
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "fixture missing")

	resp, ok = r.Handle(Request{Method: "GET", URL: "http://h/api/admin/shops"})
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, resp.Status)
	assert.Contains(t, string(resp.Body), "nil map")

	resp, ok = r.Handle(Request{Method: "GET", URL: "http://h/api/admin/applications"})
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, resp.Status)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(2), snap.ResponderFailures)
	assert.Equal(t, int64(3), snap.RequestsMocked)
	assert.NotEmpty(t, r.Log()[0].Error)
}

func TestFulfillmentAddsCORS(t *testing.T) {
	f := Response{Status: 200, ContentType: "application/json", Body: []byte(`{}`), Headers: map[string]string{"X-Mock": "1"}}.
		fulfillment(Request{Headers: map[string]string{"origin": "http://localhost:8081"}})

	assert.Equal(t, "http://localhost:8081", f.Headers["Access-Control-Allow-Origin"])
	assert.Equal(t, "true", f.Headers["Access-Control-Allow-Credentials"])
	assert.Equal(t, "application/json", f.Headers["Content-Type"])
	assert.Equal(t, "1", f.Headers["X-Mock"])

	f = Response{Status: 204}.fulfillment(Request{})
	assert.Equal(t, "*", f.Headers["Access-Control-Allow-Origin"])
}

func TestAttachInterceptsSessionRequests(t *testing.T) {
	app := fake.NewApp("http://app.test").Handle("/", fake.Page{
		OnLoad: func(v *fake.View) {
			var out struct {
				Message string `json:"message"`
			}
			if _, err := v.FetchJSON("POST", "http://api.test/api/auth/otp", map[string]string{"phone": "9876543210"}, &out); err == nil {
				v.Set("msg", out.Message)
			}
			status, _ := v.Fetch("GET", "http://api.test/api/unmocked", nil)
			v.Set("unmocked", status)
		},
		Render: func(v *fake.View) string { return `<p>` + v.GetString("msg") + `</p>` },
	})
	rt := fake.NewRuntime(app)
	t.Cleanup(func() { _ = rt.Close() })

	ctx := context.Background()
	sess, err := rt.NewSession(ctx, browser.SessionConfig{SessionID: "otp", BaseURL: app.Origin()}.WithDefaults())
	require.NoError(t, err)

	metrics := browser.NewMetrics()
	r := New(WithMetrics(metrics))
	require.NoError(t, r.Register("**/api/auth/otp", JSON(map[string]string{"message": "OTP Sent"})))
	require.NoError(t, r.Attach(ctx, sess))
	require.NoError(t, sess.Navigate(ctx, app.Origin()+"/"))

	found, err := sess.Query(ctx, browser.ExactText("OTP Sent"))
	require.NoError(t, err)
	assert.Len(t, found, 1)

	log := r.Log()
	require.Len(t, log, 2)
	assert.True(t, log[0].Mocked)
	assert.Equal(t, "POST", log[0].Method)
	assert.False(t, log[1].Mocked)
	assert.Equal(t, int64(2), metrics.Snapshot().RequestsIntercepted)
}
