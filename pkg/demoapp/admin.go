package demoapp

import (
	"strings"

	"github.com/ashparshp/hairone/pkg/browser/adapters/fake"
)

var adminTabs = []string{"Home", "Approvals", "Shops", "Menu"}

// adminTabParam maps /admin/(tabs)/<param> to a tab label.
var adminTabParam = map[string]string{
	"dashboard": "Home",
	"approvals": "Approvals",
	"shops":     "Shops",
	"menu":      "Menu",
}

type adminStats struct {
	TotalBookings     int     `json:"totalBookings"`
	TotalRevenue      float64 `json:"totalRevenue"`
	Shops             int     `json:"shops"`
	Owners            int     `json:"owners"`
	Users             int     `json:"users"`
	CompletedBookings int     `json:"completedBookings"`
}

type application struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Business string `json:"businessName"`
}

func (a *app) adminPage() fake.Page {
	load := func(v *fake.View) {
		switch v.GetString("tab") {
		case "Home":
			var stats adminStats
			if _, err := v.FetchJSON("GET", a.url("/admin/stats"), nil, &stats); err != nil {
				v.Log("error", err.Error())
				v.Set("error", "Failed to load stats")
				return
			}
			v.Set("stats", stats)
		case "Approvals":
			var apps []application
			if _, err := v.FetchJSON("GET", a.url("/admin/applications"), nil, &apps); err != nil {
				v.Set("error", "Failed to load applications")
				return
			}
			v.Set("applications", apps)
		case "Shops":
			var shops []shopSummary
			if _, err := v.FetchJSON("GET", a.url("/admin/shops"), nil, &shops); err != nil {
				v.Set("error", "Failed to load shops")
				return
			}
			v.Set("shops", shops)
		case "Menu":
			var tickets []map[string]any
			if _, err := v.FetchJSON("GET", a.url("/support/all"), nil, &tickets); err == nil {
				v.Set("tickets", len(tickets))
			}
		}
	}

	actions := tabActions(map[string]func(*fake.View){
		"finance": func(v *fake.View) { v.Redirect("/admin/finance") },
		"logout": func(v *fake.View) {
			for _, k := range []string{"token", "userToken", "user"} {
				v.RemoveStorage(k)
			}
			v.Redirect("/login")
		},
	}, func(v *fake.View) {
		v.Set("error", "")
		load(v)
	}, adminTabs...)

	return fake.Page{
		OnLoad: func(v *fake.View) {
			u, ok := requireRole(v, "admin")
			if !ok {
				return
			}
			v.Set("name", u.Name)
			tab := "Home"
			if t, ok := adminTabParam[v.Param("tab")]; ok {
				tab = t
			}
			v.Set("tab", tab)
			load(v)
		},
		Render: func(v *fake.View) string {
			var sb strings.Builder
			if msg := v.GetString("error"); msg != "" {
				sb.WriteString(`<p role="alert">` + esc(msg) + `</p>`)
			}
			switch v.GetString("tab") {
			case "Home":
				sb.WriteString(`<h1>Hello, ` + esc(v.GetString("name")) + `</h1>`)
				if stats, ok := v.Get("stats").(adminStats); ok {
					sb.WriteString(`<div class="stats">`)
					sb.WriteString(`<div><span>Total Bookings</span><span>` + printer.Sprint(stats.TotalBookings) + `</span></div>`)
					sb.WriteString(`<div><span>Revenue</span><span>` + rupeesWhole(stats.TotalRevenue) + `</span></div>`)
					sb.WriteString(`<div><span>Shops</span><span>` + printer.Sprint(stats.Shops) + `</span></div>`)
					sb.WriteString(`<div><span>Users</span><span>` + printer.Sprint(stats.Users) + `</span></div>`)
					sb.WriteString(`</div>`)
				}
			case "Approvals":
				sb.WriteString(`<h1>Pending Applications</h1>`)
				apps, _ := v.Get("applications").([]application)
				if len(apps) == 0 {
					sb.WriteString(`<p>No pending applications</p>`)
				}
				for _, ap := range apps {
					sb.WriteString(`<div class="card"><h3>` + esc(ap.Name) + `</h3><p>` + esc(ap.Business) + `</p></div>`)
				}
			case "Shops":
				sb.WriteString(`<h1>Managed Shops</h1>`)
				shops, _ := v.Get("shops").([]shopSummary)
				if len(shops) == 0 {
					sb.WriteString(`<p>No shops yet</p>`)
				}
				for _, s := range shops {
					sb.WriteString(`<div class="card"><h3>` + esc(s.Name) + `</h3><p>` + esc(s.Address) + `</p></div>`)
				}
			case "Menu":
				sb.WriteString(`<h1>Admin Menu</h1><ul>`)
				sb.WriteString(`<li data-action="finance">Finance &amp; Settlements</li>`)
				sb.WriteString(`<li>Support Tickets <span>` + printer.Sprint(ticketCount(v)) + `</span></li>`)
				sb.WriteString(`<li data-action="logout">Logout</li></ul>`)
			}
			sb.WriteString(tabBar(v.GetString("tab"), adminTabs...))
			return sb.String()
		},
		Actions: actions,
	}
}

type pendingSettlement struct {
	ShopID       string  `json:"shopId"`
	ShopName     string  `json:"shopName"`
	TotalPending float64 `json:"totalPending"`
	Details      struct {
		BookingCount int `json:"bookingCount"`
	} `json:"details"`
}

type settlement struct {
	ID     string `json:"_id"`
	ShopID struct {
		Name string `json:"name"`
	} `json:"shopId"`
	Type      string    `json:"type"`
	Amount    float64   `json:"amount"`
	CreatedAt string  `json:"createdAt"`
}

var adminFinanceTabs = []string{"Pending Settlements", "Settlement History"}

func (a *app) adminFinancePage() fake.Page {
	return fake.Page{
		OnLoad: func(v *fake.View) {
			if _, ok := requireRole(v, "admin"); !ok {
				return
			}
			v.Set("tab", adminFinanceTabs[0])
			var pending []pendingSettlement
			if _, err := v.FetchJSON("GET", a.url("/admin/finance"), nil, &pending); err != nil {
				v.Log("error", err.Error())
				v.Set("error", "Failed to load settlements")
			}
			v.Set("pending", pending)
			var history []settlement
			if _, err := v.FetchJSON("GET", a.url("/admin/finance/settlements"), nil, &history); err != nil {
				v.Log("error", err.Error())
			}
			v.Set("history", history)
		},
		Render: func(v *fake.View) string {
			var sb strings.Builder
			sb.WriteString(`<h1>Finance</h1>`)
			sb.WriteString(tabBar(v.GetString("tab"), adminFinanceTabs...))
			if msg := v.GetString("error"); msg != "" {
				sb.WriteString(`<p role="alert">` + esc(msg) + `</p>`)
			}
			if v.GetString("tab") == adminFinanceTabs[0] {
				pending, _ := v.Get("pending").([]pendingSettlement)
				if len(pending) == 0 {
					sb.WriteString(`<p>All settled</p>`)
				}
				for _, p := range pending {
					direction := "Admin owes Barber"
					if p.TotalPending < 0 {
						direction = "Barber owes Admin"
					}
					sb.WriteString(`<div class="card"><h3>` + esc(p.ShopName) + `</h3>`)
					sb.WriteString(`<p>` + direction + `</p><p>` + rupees(abs(p.TotalPending)) + `</p>`)
					sb.WriteString(`<p>` + printer.Sprintf("%d bookings", p.Details.BookingCount) + `</p>`)
					sb.WriteString(`<button data-action="settle">Mark Settled</button></div>`)
				}
			} else {
				history, _ := v.Get("history").([]settlement)
				if len(history) == 0 {
					sb.WriteString(`<p>No settlements yet</p>`)
				}
				for _, s := range history {
					sb.WriteString(`<div class="card"><h3>` + esc(s.ShopID.Name) + `</h3>`)
					sb.WriteString(`<span>` + esc(s.Type) + `</span><span>` + rupees(s.Amount) + `</span></div>`)
				}
			}
			return sb.String()
		},
		Actions: tabActions(map[string]func(*fake.View){
			"settle": func(v *fake.View) { v.Log("info", "settlement requested") },
		}, nil, adminFinanceTabs...),
	}
}

type financeSummary struct {
	TotalEarnings  float64 `json:"totalEarnings"`
	CurrentBalance float64 `json:"currentBalance"`
	Details        struct {
		PendingPayout float64 `json:"pendingPayout"`
		PendingDues   float64 `json:"pendingDues"`
	} `json:"details"`
}

var shopFinanceTabs = []string{"Overview", "Online (Payouts)", "Offline (Dues)"}

func (a *app) shopFinancePage() fake.Page {
	return fake.Page{
		OnLoad: func(v *fake.View) {
			u, ok := requireRole(v, "owner")
			if !ok {
				return
			}
			v.Set("tab", shopFinanceTabs[0])
			if u.ShopID == "" {
				v.Set("error", "No shop linked to this account")
				return
			}
			var summary financeSummary
			if _, err := v.FetchJSON("GET", a.url("/shops/"+u.ShopID+"/finance/summary"), nil, &summary); err != nil {
				v.Log("error", err.Error())
				v.Set("error", "Failed to load finance data")
				return
			}
			v.Set("summary", summary)
			var history []settlement
			if _, err := v.FetchJSON("GET", a.url("/shops/"+u.ShopID+"/finance/settlements"), nil, &history); err == nil {
				v.Set("history", history)
			}
		},
		Render: func(v *fake.View) string {
			var sb strings.Builder
			sb.WriteString(`<h1>Finance Dashboard</h1>`)
			if msg := v.GetString("error"); msg != "" {
				sb.WriteString(`<p role="alert">` + esc(msg) + `</p>`)
				return sb.String()
			}
			sb.WriteString(tabBar(v.GetString("tab"), shopFinanceTabs...))
			summary, _ := v.Get("summary").(financeSummary)
			switch v.GetString("tab") {
			case "Online (Payouts)":
				sb.WriteString(`<h2>Online Payments</h2><p>Pending payout ` + rupees(summary.Details.PendingPayout) + `</p>`)
			case "Offline (Dues)":
				sb.WriteString(`<h2>Cash Collections</h2><p>Pending dues ` + rupees(summary.Details.PendingDues) + `</p>`)
			default:
				sb.WriteString(`<div class="card"><span>Total Earnings</span><span>` + rupeesWhole(summary.TotalEarnings) + `</span></div>`)
				switch {
				case summary.CurrentBalance > 0:
					sb.WriteString(`<div class="card"><h3>Payout Incoming</h3><p>Admin owes you ` + rupees(summary.CurrentBalance) + `</p></div>`)
				case summary.CurrentBalance < 0:
					sb.WriteString(`<div class="card"><h3>Dues Pending</h3><p>You owe admin ` + rupees(-summary.CurrentBalance) + `</p></div>`)
				default:
					sb.WriteString(`<div class="card"><h3>All Settled</h3></div>`)
				}
				history, _ := v.Get("history").([]settlement)
				if len(history) == 0 {
					sb.WriteString(`<p>No settlements yet</p>`)
				}
				for _, s := range history {
					sb.WriteString(`<p><span>` + esc(s.Type) + `</span> <span>` + rupees(s.Amount) + `</span></p>`)
				}
			}
			return sb.String()
		},
		Actions: tabActions(nil, nil, shopFinanceTabs...),
	}
}

func ticketCount(v *fake.View) int {
	n, _ := v.Get("tickets").(int)
	return n
}
