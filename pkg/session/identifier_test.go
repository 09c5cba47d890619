package session

import (
	"strings"
	"sync"
	"testing"
)

func TestSlug(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Shop Gallery", "shop-gallery"},
		{"  admin/(tabs)/shops ", "admin-tabs-shops"},
		{"OTP login!!", "otp-login"},
		{"---", "fallback"},
		{"", "fallback"},
	}
	for _, tt := range tests {
		if got := Slug(tt.in, "fallback"); got != tt.want {
			t.Errorf("Slug(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGenerateSessionID(t *testing.T) {
	id := GenerateSessionID("Dark Login")
	if !strings.HasPrefix(id, "dark-login-") {
		t.Fatalf("GenerateSessionID() = %s, want dark-login- prefix", id)
	}
	if len(id) != len("dark-login-")+26 {
		t.Fatalf("expected 26-char ulid suffix, got %s", id)
	}
	if id != strings.ToLower(id) {
		t.Fatalf("id should be lowercase: %s", id)
	}

	if got := GenerateSessionID(""); !strings.HasPrefix(got, "session-") {
		t.Fatalf("empty base should fall back to session-, got %s", got)
	}
}

func TestIDsAreUniqueAcrossGoroutines(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{})
		wg   sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				id := NewRunID()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(seen) != 400 {
		t.Fatalf("expected 400 unique ids, got %d", len(seen))
	}
}

func TestRunIDsSortByCreation(t *testing.T) {
	first := NewRunID()
	second := NewRunID()
	if !(first < second) {
		t.Fatalf("run ids should be monotonic: %s !< %s", first, second)
	}
}
