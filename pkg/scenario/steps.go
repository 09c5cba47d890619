package scenario

import (
	"time"

	"github.com/ashparshp/hairone/pkg/browser"
	"github.com/ashparshp/hairone/pkg/fixture"
)

// Navigate loads route relative to the base URL.
func Navigate(route string) Step {
	return Step{Kind: StepNavigate, URL: route}
}

// Reload reloads the current page.
func Reload() Step {
	return Step{Kind: StepReload}
}

// WaitVisible waits until loc resolves to a visible element.
func WaitVisible(loc browser.Locator) Step {
	return Step{Kind: StepWaitVisible, Locator: &loc}
}

// WaitHidden waits until loc resolves to nothing visible.
func WaitHidden(loc browser.Locator) Step {
	return Step{Kind: StepWaitHidden, Locator: &loc}
}

// WaitURL waits until the page URL matches glob.
func WaitURL(glob string) Step {
	return Step{Kind: StepWaitURL, URL: glob}
}

// Fill types value into the element loc resolves to.
func Fill(loc browser.Locator, value string) Step {
	return Step{Kind: StepFill, Locator: &loc, Value: value}
}

// Click clicks the element loc resolves to.
func Click(loc browser.Locator) Step {
	return Step{Kind: StepClick, Locator: &loc}
}

// AssertVisible checks loc becomes visible within the timeout.
func AssertVisible(loc browser.Locator) Step {
	return Step{Kind: StepAssertVisible, Locator: &loc}
}

// AssertNotVisible passes when loc stays absent or hidden for the whole
// timeout.
func AssertNotVisible(loc browser.Locator) Step {
	return Step{Kind: StepAssertNotVisible, Locator: &loc}
}

// AssertCount checks that exactly n elements match loc.
func AssertCount(loc browser.Locator, n int) Step {
	return Step{Kind: StepAssertCount, Locator: &loc, Count: n}
}

// AssertAtLeast checks that n or more elements match loc.
func AssertAtLeast(loc browser.Locator, n int) Step {
	return Step{Kind: StepAssertCount, Locator: &loc, Count: n, AtLeast: true}
}

// Screenshot captures a named checkpoint.
func Screenshot(name string) Step {
	return Step{Kind: StepScreenshot, Checkpoint: name}
}

// Sleep pauses for d to let layout settle.
func Sleep(d time.Duration) Step {
	return Step{Kind: StepSleep, Duration: d}
}

// Seed replaces the session identity. It takes effect on the next load.
func Seed(identity fixture.Identity) Step {
	return Step{Kind: StepSeed, Fixture: &identity, Identity: identity.Name}
}

// SeedNamed seeds a fixture by name.
func SeedNamed(name string) Step {
	return Step{Kind: StepSeed, Identity: name}
}

// AsOptional marks the step so its soft failure does not abort the scenario.
func (s Step) AsOptional() Step {
	s.Optional = true
	return s
}

// Within bounds the step's wait.
func (s Step) Within(d time.Duration) Step {
	s.Timeout = d
	return s
}

// Capture takes a checkpoint named name once the step passes.
func (s Step) Capture(name string) Step {
	s.Checkpoint = name
	return s
}

// Named sets the label shown in logs.
func (s Step) Named(name string) Step {
	s.Name = name
	return s
}

// WithReload makes a seed step reload the page.
func (s Step) WithReload() Step {
	s.Reload = true
	return s
}
