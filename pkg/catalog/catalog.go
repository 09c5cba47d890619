// Package catalog holds the built-in HairOne verification scenarios and the
// identities they sign in as.
package catalog

import (
	"sort"
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/fixture"
	"github.com/ashparshp/hairone/pkg/scenario"
)

var identities = map[string]fixture.Identity{
	"admin": {
		Name:  "admin",
		Token: "mock-token",
		User:  fixture.User{ID: "admin-id", Name: "Admin User", Role: "admin"},
	},
	"owner": {
		Name:  "owner",
		Token: "mock-token",
		User:  fixture.User{ID: "owner-id", Name: "Owner User", Role: "owner", ShopID: "shop1"},
	},
	"user": {
		Name:  "user",
		Token: "dummy-token",
		User:  fixture.User{ID: "u1", Name: "Test User", Phone: "9876543210", Role: "user"},
	},
	"customer": {
		Name:  "customer",
		Token: "mock-token",
		User:  fixture.User{ID: "user123", Name: "Test User", Role: "user"},
		Extra: map[string]string{"applicationStatus": "none"},
	},
}

// Identities returns a copy of the built-in identities keyed by name.
func Identities() map[string]fixture.Identity {
	out := make(map[string]fixture.Identity, len(identities))
	for k, v := range identities {
		out[k] = v
	}
	return out
}

// Lookup returns the built-in identity called name.
func Lookup(name string) (fixture.Identity, bool) {
	id, ok := identities[name]
	return id, ok
}

// Names lists the built-in identity names in order.
func Names() []string {
	out := make([]string, 0, len(identities))
	for k := range identities {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Scenarios returns fresh copies of every built-in scenario.
func Scenarios() []*scenario.Scenario {
	return []*scenario.Scenario{
		adminLogin(),
		accessControl(),
		shopDetails(),
		shopGallery(),
		otpLogin(),
		financeFlow(),
		adminFinance(),
		ownerFinance(),
		darkLogin(),
		profile(),
		homeEmptyState(),
	}
}

var (
	phoneInput = browser.Placeholder("9876543210")
	otpInput   = browser.Placeholder("XXXX")
)

func otpMocks(token string, user map[string]any) []scenario.Mock {
	return []scenario.Mock{
		{Pattern: "**/api/auth/otp", JSON: map[string]any{"message": "OTP Sent"}},
		{Pattern: "**/api/auth/verify", JSON: map[string]any{"token": token, "user": user}},
	}
}

func adminLogin() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "admin-login",
		Description: "OTP login as admin lands on the dashboard and every admin tab renders",
		Tags:        []string{"admin", "auth", "mobile"},
		Session:     scenario.Session{Viewport: "mobile"},
		Mocks: append(otpMocks("fake-token", map[string]any{"role": "admin", "name": "Admin User", "phone": "9999999999"}),
			scenario.Mock{Pattern: "**/api/admin/stats", JSON: map[string]any{
				"totalBookings": 150, "totalRevenue": 50000, "shops": 12,
				"owners": 10, "users": 500, "completedBookings": 140,
			}},
			scenario.Mock{Pattern: "**/api/admin/applications", JSON: []any{}},
			scenario.Mock{Pattern: "**/api/admin/shops", JSON: []any{}},
			scenario.Mock{Pattern: "**/api/support/all", JSON: []any{}},
		),
		Steps: []scenario.Step{
			scenario.Navigate("/(auth)/login"),
			scenario.WaitVisible(browser.Text("Mobile Number")).Within(30 * time.Second),
			scenario.Fill(phoneInput, "9999999999"),
			scenario.Click(browser.Text("Continue")),
			scenario.WaitVisible(browser.Text("Edit")),
			scenario.Fill(browser.CSS("input").Last(), "1234"),
			scenario.Click(browser.Text("Login")),
			scenario.WaitVisible(browser.Text("Hello, Admin User")).Within(15 * time.Second).Capture("admin_home"),
			scenario.Click(browser.Text("Approvals")),
			scenario.WaitVisible(browser.Text("Pending Applications")).Capture("admin_approvals"),
			scenario.Click(browser.Role("tab", "Shops")),
			scenario.WaitVisible(browser.Text("Managed Shops")).Capture("admin_shops"),
			scenario.Click(browser.Text("Menu")),
			scenario.WaitVisible(browser.Text("Finance & Settlements")).Capture("admin_menu"),
		},
	}
}

func accessControl() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "access-control",
		Description: "a regular user forced onto an admin route never sees admin content",
		Tags:        []string{"admin", "auth", "security", "mobile"},
		Session:     scenario.Session{Viewport: "mobile"},
		Mocks: append(otpMocks("user-token", map[string]any{"role": "user", "name": "Regular User", "phone": "1111111111"}),
			scenario.Mock{Pattern: "**/api/shops", JSON: []any{}},
		),
		Steps: []scenario.Step{
			scenario.Navigate("/(auth)/login"),
			scenario.WaitVisible(browser.Text("Mobile Number")).Within(30 * time.Second),
			scenario.Fill(phoneInput, "1111111111"),
			scenario.Click(browser.Text("Continue")),
			scenario.WaitVisible(browser.Text("Edit")),
			scenario.Fill(browser.CSS("input").Last(), "1234"),
			scenario.Click(browser.Text("Login")),
			scenario.WaitURL("**/home"),
			scenario.Navigate("/admin/(tabs)/shops").Named("force admin shops"),
			scenario.AssertNotVisible(browser.Text("Managed Shops")).Within(5 * time.Second).Capture("access_denied"),
		},
	}
}

func shopDetails() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "shop-details",
		Description: "salon page lists fallback services and the gallery",
		Tags:        []string{"customer", "shop"},
		Identity:    "user",
		FullPage:    true,
		Mocks: []scenario.Mock{
			{Pattern: "**/api/shops/test-shop-id", JSON: map[string]any{
				"shop": map[string]any{
					"_id": "test-shop-id", "name": "Gallery Test Shop", "address": "MG Road",
					"gallery": []any{"https://images.test/cut-1.jpg", "https://images.test/cut-2.jpg"},
				},
				"barbers": []any{},
			}},
			{Pattern: "**/api/shops/*/reviews", JSON: []any{}},
			{Pattern: "https://images.test/**", Body: "", ContentType: "image/jpeg"},
		},
		Steps: []scenario.Step{
			scenario.Navigate("/salon/test-shop-id"),
			scenario.WaitVisible(browser.Text("Standard Haircut")).Within(30 * time.Second),
			scenario.Click(browser.Text("Portfolio")),
			scenario.AssertAtLeast(browser.CSS(".gallery img"), 1),
			scenario.Sleep(time.Second),
			scenario.Screenshot("shop_details_layout"),
		},
	}
}

func shopGallery() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "shop-gallery",
		Description: "the portfolio tab shows exactly the shop's gallery images",
		Tags:        []string{"customer", "shop"},
		Mocks: []scenario.Mock{
			{Pattern: "**/shops/shop123", JSON: map[string]any{
				"shop": map[string]any{"gallery": []any{"a.png", "b.png"}},
			}},
		},
		Steps: []scenario.Step{
			scenario.Navigate("/salon/shop123"),
			scenario.Click(browser.Text("Portfolio")),
			scenario.AssertCount(browser.CSS(`.gallery img[src="a.png"], .gallery img[src="b.png"]`), 2),
			scenario.AssertCount(browser.CSS(".gallery img"), 2),
			scenario.Screenshot("gallery.png"),
		},
	}
}

func otpLogin() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "otp-login",
		Description: "a customer signs in with phone and OTP and is greeted by first name",
		Tags:        []string{"customer", "auth"},
		Mocks:       otpMocks("t", map[string]any{"role": "user", "name": "Alex"}),
		Steps: []scenario.Step{
			scenario.Navigate("/login"),
			scenario.Fill(phoneInput, "9876543210"),
			scenario.Click(browser.Text("Continue")),
			scenario.Fill(otpInput, "1234"),
			scenario.Click(browser.Text("Login")),
			scenario.WaitVisible(browser.Text("Hello, Alex")).Within(30 * time.Second).Capture("otp_login_home"),
		},
	}
}

func financeFlow() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "finance-flow",
		Description: "owner finance tabs, then the admin finance dashboard after switching identity",
		Tags:        []string{"finance", "owner", "admin", "desktop"},
		Session:     scenario.Session{Viewport: "desktop"},
		Identity:    "owner",
		Mocks:       append(ownerFinanceMocks(), adminFinanceMocks()...),
		Steps: []scenario.Step{
			scenario.Navigate("/salon/revenue-stats"),
			scenario.WaitVisible(browser.Text("Finance Dashboard")).Capture("shop_finance_overview"),
			scenario.Click(browser.Text("Online (Payouts)")).AsOptional().Capture("shop_finance_online"),
			scenario.Click(browser.Text("Offline (Dues)")).AsOptional().Capture("shop_finance_offline"),
			scenario.SeedNamed("admin"),
			scenario.Navigate("/admin/finance"),
			scenario.WaitVisible(browser.Text("Pending Settlements")).Capture("admin_finance"),
		},
	}
}

func adminFinanceMocks() []scenario.Mock {
	return []scenario.Mock{
		{Pattern: "**/api/auth/me", JSON: map[string]any{
			"user":  map[string]any{"_id": "admin-id", "role": "admin", "name": "Admin User"},
			"token": "mock-token",
		}},
		{Pattern: "**/api/admin/finance", JSON: []any{
			map[string]any{"shopId": "shop1", "shopName": "Barber King", "totalPending": 80, "details": map[string]any{"bookingCount": 5}},
			map[string]any{"shopId": "shop2", "shopName": "Cash Only Cuts", "totalPending": -50, "details": map[string]any{"bookingCount": 3}},
		}},
		{Pattern: "**/api/admin/finance/settlements", JSON: []any{
			map[string]any{"_id": "settlement1", "shopId": map[string]any{"name": "Barber King"}, "type": "PAYOUT", "amount": 120, "createdAt": "2024-01-15T10:00:00Z"},
		}},
	}
}

func ownerFinanceMocks() []scenario.Mock {
	return []scenario.Mock{
		{Pattern: "**/api/shops/*/finance/summary", JSON: map[string]any{
			"totalEarnings":  5000,
			"currentBalance": 150,
			"details":        map[string]any{"pendingPayout": 200, "pendingDues": 50},
		}},
		{Pattern: "**/api/shops/*/finance/settlements", JSON: []any{}},
	}
}

func adminFinance() *scenario.Scenario {
	text := browser.Text
	return &scenario.Scenario{
		Name:        "admin-finance",
		Description: "pending settlements show who owes whom, history shows payouts",
		Tags:        []string{"finance", "admin"},
		Identity:    "admin",
		Mocks:       adminFinanceMocks(),
		Steps: []scenario.Step{
			scenario.Navigate("/admin/finance"),
			scenario.AssertVisible(text("Pending Settlements")),
			scenario.AssertVisible(text("Settlement History")),
			scenario.AssertVisible(text("Barber King")),
			scenario.AssertVisible(text("Admin owes Barber")),
			scenario.AssertVisible(text("₹80.00")),
			scenario.AssertVisible(text("Cash Only Cuts")),
			scenario.AssertVisible(text("Barber owes Admin")),
			scenario.AssertVisible(text("₹50.00")).Capture("admin_finance_pending"),
			scenario.Click(text("Settlement History")),
			scenario.AssertVisible(text("PAYOUT")),
			scenario.AssertVisible(text("₹120.00")).Capture("admin_finance_history"),
		},
	}
}

func ownerFinance() *scenario.Scenario {
	text := browser.Text
	return &scenario.Scenario{
		Name:        "owner-finance",
		Description: "shop owner sees earnings and an incoming payout",
		Tags:        []string{"finance", "owner"},
		Identity:    "owner",
		Mocks:       ownerFinanceMocks(),
		Steps: []scenario.Step{
			scenario.Navigate("/salon/revenue-stats"),
			scenario.AssertVisible(text("Finance Dashboard")),
			scenario.AssertVisible(text("Total Earnings")),
			scenario.AssertVisible(text("₹5,000")),
			scenario.AssertVisible(text("Payout Incoming")),
			scenario.AssertVisible(text("Admin owes you ₹150.00")).Capture("shop_finance"),
		},
	}
}

func darkLogin() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "login-dark",
		Description: "login screen renders under the dark color scheme",
		Tags:        []string{"auth", "theme"},
		Session:     scenario.Session{ColorScheme: string(browser.ColorSchemeDark)},
		Steps: []scenario.Step{
			scenario.Navigate("/"),
			scenario.WaitVisible(browser.Text("HairOne")).Within(60 * time.Second),
			scenario.AssertVisible(phoneInput),
			scenario.Screenshot("login_screen_dark"),
		},
	}
}

func profile() *scenario.Scenario {
	text := browser.Text
	return &scenario.Scenario{
		Name:        "profile",
		Description: "profile shows favorites and gender and the edit dialog offers every gender",
		Tags:        []string{"customer", "profile"},
		Identity:    "customer",
		Steps: []scenario.Step{
			scenario.Navigate("/profile"),
			scenario.WaitVisible(text("Test User")),
			scenario.AssertVisible(text("Favorites")),
			scenario.AssertVisible(text("Gender")),
			scenario.Click(text("Edit Profile")),
			scenario.WaitVisible(text("Update Profile")),
			scenario.AssertVisible(browser.ExactText("Male")),
			scenario.AssertVisible(browser.ExactText("Female")),
			scenario.AssertVisible(browser.ExactText("Other")).Capture("profile_verification"),
		},
	}
}

func homeEmptyState() *scenario.Scenario {
	return &scenario.Scenario{
		Name:        "home-empty-state",
		Description: "a new customer with no salons in range sees the empty state",
		Tags:        []string{"customer", "home", "auth"},
		Mocks: append(otpMocks("mock_token", map[string]any{"_id": "1", "name": "Test User", "role": "user"}),
			scenario.Mock{Pattern: "**/shops*", JSON: []any{}},
		),
		Steps: []scenario.Step{
			scenario.Navigate("/"),
			scenario.Fill(phoneInput, "9999999999"),
			scenario.Click(browser.Text("Continue")),
			scenario.WaitVisible(otpInput),
			scenario.Fill(otpInput, "1234"),
			scenario.Click(browser.Text("Login")),
			scenario.WaitVisible(browser.Text("No salons found nearby.")).Within(15 * time.Second),
			scenario.WaitVisible(browser.Text("Increase Range")).Capture("home_empty_state"),
		},
	}
}
