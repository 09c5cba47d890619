// Package demoapp is an in-memory rendition of the HairOne web client for
// the fake engine. It reads the same localStorage keys and calls the same
// API routes as the real app, so built-in scenarios and their mocks can be
// exercised without a browser or a running frontend.
package demoapp

import (
	"html"
	"strings"

	"github.com/bytedance/sonic"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ashparshp/hairone/pkg/browser/adapters/fake"
	"github.com/ashparshp/hairone/pkg/fixture"
)

// DefaultOrigin matches the Expo web dev server.
const DefaultOrigin = "http://localhost:8081"

// DefaultAPIBase matches the backend dev server.
const DefaultAPIBase = "http://localhost:5000/api"

var printer = message.NewPrinter(language.English)

// New builds the app served at origin, calling the API at apiBase.
func New(origin, apiBase string) *fake.App {
	a := &app{api: strings.TrimRight(apiBase, "/")}
	return fake.NewApp(origin).
		Handle("/", fake.Page{OnLoad: a.landing, Render: func(*fake.View) string { return "" }}).
		Handle("/login", a.loginPage()).
		Handle("/(auth)/login", a.loginPage()).
		Handle("/home", a.homePage()).
		Handle("/(tabs)/home", a.homePage()).
		Handle("/profile", a.profilePage()).
		Handle("/(tabs)/profile", a.profilePage()).
		Handle("/admin", a.adminPage()).
		Handle("/admin/finance", a.adminFinancePage()).
		Handle("/admin/(tabs)/:tab", a.adminPage()).
		Handle("/salon/revenue-stats", a.shopFinancePage()).
		Handle("/salon/:id", a.salonPage())
}

type app struct {
	api string
}

func (a *app) url(path string) string {
	return a.api + path
}

// currentUser reads the signed-in user from localStorage. The app accepts
// either token key.
func currentUser(v *fake.View) (fixture.User, bool) {
	token, _ := v.Storage("token")
	if token == "" {
		token, _ = v.Storage("userToken")
	}
	if token == "" {
		return fixture.User{}, false
	}
	var u fixture.User
	if raw, ok := v.Storage("user"); ok && raw != "" {
		if err := sonic.UnmarshalString(raw, &u); err != nil {
			v.Log("error", "corrupt user in storage: "+err.Error())
		}
	}
	return u, true
}

// requireRole redirects visitors without a session to the login screen and
// signed-in users without one of roles to their own home. It reports
// whether the page may render.
func requireRole(v *fake.View, roles ...string) (fixture.User, bool) {
	u, ok := currentUser(v)
	if !ok {
		v.Redirect("/login")
		return u, false
	}
	if len(roles) == 0 {
		return u, true
	}
	for _, r := range roles {
		if u.Role == r {
			return u, true
		}
	}
	v.Log("warn", "role "+u.Role+" may not open "+v.URL().Path)
	v.Redirect(homeFor(u.Role))
	return u, false
}

func homeFor(role string) string {
	switch role {
	case "admin":
		return "/admin"
	case "owner":
		return "/salon/revenue-stats"
	}
	return "/home"
}

func (a *app) landing(v *fake.View) {
	if u, ok := currentUser(v); ok {
		v.Redirect(homeFor(u.Role))
		return
	}
	v.Redirect("/login")
}

func esc(s string) string { return html.EscapeString(s) }

// rupees renders an amount with paise, e.g. ₹1,234.50.
func rupees(v float64) string {
	return printer.Sprintf("₹%.2f", v)
}

// rupeesWhole renders a rounded amount, e.g. ₹5,000.
func rupeesWhole(v float64) string {
	return printer.Sprintf("₹%d", int64(v+0.5))
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// tabBar renders role=tab items that switch the view via data-action.
func tabBar(active string, tabs ...string) string {
	var sb strings.Builder
	sb.WriteString(`<nav role="tablist">`)
	for _, t := range tabs {
		selected := "false"
		if t == active {
			selected = "true"
		}
		sb.WriteString(`<div role="tab" aria-selected="` + selected + `" data-action="tab:` + esc(t) + `">` + esc(t) + `</div>`)
	}
	sb.WriteString(`</nav>`)
	return sb.String()
}

// tabActions maps every tab to an action that selects it and runs load.
func tabActions(actions map[string]func(*fake.View), load func(*fake.View), tabs ...string) map[string]func(*fake.View) {
	if actions == nil {
		actions = make(map[string]func(*fake.View))
	}
	for _, t := range tabs {
		actions["tab:"+t] = func(v *fake.View) {
			v.Set("tab", t)
			if load != nil {
				load(v)
			}
		}
	}
	return actions
}
