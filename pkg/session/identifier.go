package session

import (
	cryptorand "crypto/rand"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	sessionNameSanitizer = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
	dashRun              = regexp.MustCompile(`-{2,}`)

	entropyMu   sync.Mutex
	ulidEntropy = ulid.Monotonic(cryptorand.Reader, 0)
)

func newULID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(time.Now()), ulidEntropy).String())
}

// Slug lowercases name and replaces anything outside [a-z0-9-] with dashes.
// It returns fallback when nothing usable remains.
func Slug(name, fallback string) string {
	base := strings.TrimSpace(name)
	base = strings.ToLower(strings.ReplaceAll(base, " ", "-"))
	base = sessionNameSanitizer.ReplaceAllString(base, "-")
	base = dashRun.ReplaceAllString(base, "-")
	base = strings.Trim(base, "-")
	if base == "" {
		return fallback
	}
	return base
}

// GenerateSessionID returns a unique browser session ID using the provided base name
func GenerateSessionID(base string) string {
	return fmt.Sprintf("%s-%s", Slug(base, "session"), newULID())
}

// NewRunID returns a sortable identifier for one harness invocation.
func NewRunID() string {
	return "run-" + newULID()
}
