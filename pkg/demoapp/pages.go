package demoapp

import (
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ashparshp/hairone/pkg/browser/adapters/fake"
	"github.com/ashparshp/hairone/pkg/fixture"
)

func (a *app) loginPage() fake.Page {
	return fake.Page{
		OnLoad: func(v *fake.View) {
			if u, ok := currentUser(v); ok {
				v.Redirect(homeFor(u.Role))
			}
		},
		Render: func(v *fake.View) string {
			var sb strings.Builder
			sb.WriteString(`<main class="login"><h1>HairOne</h1><p>Book your next cut in seconds</p>`)
			if msg := v.GetString("error"); msg != "" {
				sb.WriteString(`<p role="alert">` + esc(msg) + `</p>`)
			}
			if v.GetString("step") == "otp" {
				sb.WriteString(`<p>Code sent to +91 ` + esc(v.GetString("phone")) + `</p>`)
				sb.WriteString(`<button data-action="edit">Edit</button>`)
				sb.WriteString(`<label>Enter OTP</label><input name="otp" placeholder="XXXX" maxlength="4">`)
				sb.WriteString(`<button data-action="verify">Login</button>`)
			} else {
				sb.WriteString(`<label>Mobile Number</label><input name="phone" placeholder="9876543210" value="` + esc(v.Input("phone")) + `">`)
				sb.WriteString(`<button data-action="send-otp">Continue</button>`)
			}
			sb.WriteString(`</main>`)
			return sb.String()
		},
		Actions: map[string]func(*fake.View){
			"send-otp": a.sendOTP,
			"edit":     func(v *fake.View) { v.Set("step", "phone") },
			"verify":   a.verifyOTP,
		},
	}
}

func (a *app) sendOTP(v *fake.View) {
	phone := strings.TrimSpace(v.Input("phone"))
	if len(phone) != 10 {
		v.Set("error", "Enter a valid 10-digit mobile number")
		return
	}
	if _, err := v.FetchJSON("POST", a.url("/auth/otp"), map[string]string{"phone": phone}, nil); err != nil {
		v.Log("error", err.Error())
		v.Set("error", "Failed to send OTP")
		return
	}
	v.Set("error", "")
	v.Set("phone", phone)
	v.Set("step", "otp")
}

func (a *app) verifyOTP(v *fake.View) {
	otp := strings.TrimSpace(v.Input("otp"))
	if len(otp) < 4 {
		return
	}
	var out struct {
		Token string       `json:"token"`
		User  fixture.User `json:"user"`
	}
	body := map[string]string{"phone": v.GetString("phone"), "otp": otp}
	if _, err := v.FetchJSON("POST", a.url("/auth/verify"), body, &out); err != nil || out.Token == "" {
		v.Set("error", "Invalid OTP")
		return
	}
	user, err := sonic.MarshalString(out.User)
	if err != nil {
		v.Set("error", "Invalid OTP")
		return
	}
	v.SetStorage("token", out.Token)
	v.SetStorage("userToken", out.Token)
	v.SetStorage("user", user)
	v.Redirect(homeFor(out.User.Role))
}

type shopSummary struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Rating  float64 `json:"rating"`
}

func (a *app) homePage() fake.Page {
	load := func(v *fake.View) {
		km := searchRange(v.Input("range"))
		v.Set("range", km)
		var shops []shopSummary
		if _, err := v.FetchJSON("GET", a.url("/shops?range="+km), nil, &shops); err != nil {
			v.Log("error", err.Error())
			v.Set("error", true)
			return
		}
		v.Set("shops", shops)
	}
	return fake.Page{
		OnLoad: func(v *fake.View) {
			u, ok := requireRole(v)
			if !ok {
				return
			}
			v.Set("name", u.Name)
			load(v)
		},
		Render: func(v *fake.View) string {
			var sb strings.Builder
			sb.WriteString(`<header><h1>Hello, ` + esc(firstName(v.GetString("name"))) + `</h1></header>`)
			sb.WriteString(`<section><label>Increase Range</label><input type="range" name="range" min="1" max="50" value="` + esc(v.GetString("range")) + `" data-on-fill="range"></section>`)
			shops, _ := v.Get("shops").([]shopSummary)
			switch {
			case v.Get("error") == true:
				sb.WriteString(`<p role="alert">Could not load salons.</p>`)
			case len(shops) == 0:
				sb.WriteString(`<p>No salons found nearby.</p>`)
			default:
				sb.WriteString(`<ul>`)
				for _, s := range shops {
					sb.WriteString(`<li><a href="/salon/` + esc(s.ID) + `">` + esc(s.Name) + `</a><span>` + esc(s.Address) + `</span></li>`)
				}
				sb.WriteString(`</ul>`)
			}
			sb.WriteString(tabBar("Home", "Home", "Bookings", "Profile"))
			return sb.String()
		},
		Actions: map[string]func(*fake.View){
			"range":       load,
			"tab:Home":    func(v *fake.View) { v.Redirect("/home") },
			"tab:Profile": func(v *fake.View) { v.Redirect("/profile") },
		},
	}
}

func (a *app) profilePage() fake.Page {
	return fake.Page{
		OnLoad: func(v *fake.View) {
			u, ok := requireRole(v)
			if !ok {
				return
			}
			v.Set("user", u)
		},
		Render: func(v *fake.View) string {
			u, _ := v.Get("user").(fixture.User)
			var sb strings.Builder
			sb.WriteString(`<h1>` + esc(u.Name) + `</h1>`)
			if u.Phone != "" {
				sb.WriteString(`<p>+91 ` + esc(u.Phone) + `</p>`)
			}
			sb.WriteString(`<div class="stats"><div><span>0</span><span>Favorites</span></div>`)
			sb.WriteString(`<div><span>Not set</span><span>Gender</span></div></div>`)
			sb.WriteString(`<button data-action="edit-profile">Edit Profile</button>`)
			sb.WriteString(`<button data-action="logout">Logout</button>`)
			if v.Get("editing") == true {
				sb.WriteString(`<div role="dialog"><h2>Update Profile</h2>`)
				for _, g := range []string{"Male", "Female", "Other"} {
					sb.WriteString(`<button data-action="gender">` + g + `</button>`)
				}
				sb.WriteString(`</div>`)
			}
			return sb.String()
		},
		Actions: map[string]func(*fake.View){
			"edit-profile": func(v *fake.View) { v.Set("editing", true) },
			"gender":       func(v *fake.View) { v.Set("editing", false) },
			"logout": func(v *fake.View) {
				for _, k := range []string{"token", "userToken", "user"} {
					v.RemoveStorage(k)
				}
				v.Redirect("/login")
			},
		},
	}
}

type service struct {
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Duration int     `json:"duration"`
}

type shopDetail struct {
	ID       string    `json:"_id"`
	Name     string    `json:"name"`
	Address  string    `json:"address"`
	Services []service `json:"services"`
	Gallery  []string  `json:"gallery"`
}

type barber struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// shopResponse is the body of GET /shops/:id.
type shopResponse struct {
	Shop    shopDetail `json:"shop"`
	Barbers []barber   `json:"barbers"`
}

type review struct {
	Rating  float64 `json:"rating"`
	Comment string  `json:"comment"`
}

// defaultServices are shown when a shop has not configured any.
var defaultServices = []service{
	{Name: "Standard Haircut", Price: 150, Duration: 30},
	{Name: "Beard Trim", Price: 80, Duration: 15},
}

var salonTabs = []string{"Services", "Portfolio", "Reviews"}

// searchRange is the salon search radius in km, 5 unless a valid 1-50 was
// picked.
func searchRange(raw string) string {
	if km, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && km >= 1 && km <= 50 {
		return strconv.Itoa(km)
	}
	return "5"
}

// firstName is the greeting name: the first word, or Guest.
func firstName(name string) string {
	if f := strings.Fields(name); len(f) > 0 {
		return f[0]
	}
	return "Guest"
}

// salonPage is public; signing in only matters for booking.
func (a *app) salonPage() fake.Page {
	return fake.Page{
		OnLoad: func(v *fake.View) {
			v.Set("tab", "Services")
			var res shopResponse
			if _, err := v.FetchJSON("GET", a.url("/shops/"+v.Param("id")), nil, &res); err != nil {
				v.Log("error", err.Error())
				v.Set("error", true)
				return
			}
			if len(res.Shop.Services) == 0 {
				res.Shop.Services = defaultServices
			}
			v.Set("shop", res.Shop)
			v.Set("barbers", res.Barbers)

			var reviews []review
			if _, err := v.FetchJSON("GET", a.url("/shops/"+v.Param("id")+"/reviews"), nil, &reviews); err == nil {
				v.Set("reviews", reviews)
			}
		},
		Render: func(v *fake.View) string {
			if v.Get("error") == true {
				return `<p role="alert">Failed to load salon</p>`
			}
			shop, _ := v.Get("shop").(shopDetail)
			var sb strings.Builder
			sb.WriteString(`<h1>` + esc(shop.Name) + `</h1><p>` + esc(shop.Address) + `</p>`)
			if barbers, _ := v.Get("barbers").([]barber); len(barbers) > 0 {
				sb.WriteString(`<p>` + printer.Sprintf("%d barbers", len(barbers)) + `</p>`)
			}
			tab := v.GetString("tab")
			sb.WriteString(tabBar(tab, salonTabs...))
			switch tab {
			case "Portfolio":
				sb.WriteString(`<section class="gallery">`)
				if len(shop.Gallery) == 0 {
					sb.WriteString(`<p>No photos yet.</p>`)
				}
				for i, src := range shop.Gallery {
					sb.WriteString(`<img src="` + esc(src) + `" alt="Gallery image ` + printer.Sprint(i+1) + `">`)
				}
				sb.WriteString(`</section>`)
			case "Reviews":
				reviews, _ := v.Get("reviews").([]review)
				if len(reviews) == 0 {
					sb.WriteString(`<p>No reviews yet.</p>`)
				}
				for _, r := range reviews {
					sb.WriteString(`<p>` + printer.Sprintf("%.1f", r.Rating) + ` ` + esc(r.Comment) + `</p>`)
				}
			default:
				sb.WriteString(`<h2>Services</h2><ul>`)
				for _, s := range shop.Services {
					sb.WriteString(`<li><span>` + esc(s.Name) + `</span><span>` + rupeesWhole(s.Price) + `</span></li>`)
				}
				sb.WriteString(`</ul>`)
			}
			return sb.String()
		},
		Actions: tabActions(nil, nil, salonTabs...),
	}
}
