package fake

import (
	"regexp"
	"strings"

	"github.com/bytedance/sonic"
)

// The fake engine does not run JavaScript. Init scripts are scanned for
// literal localStorage calls instead, which covers the scripts the fixture
// injector generates. Calls with computed arguments are ignored.
var storageCall = regexp.MustCompile(
	`localStorage\.(setItem|removeItem|clear)\(\s*` +
		`(?:("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*` +
		`(?:,\s*("(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*')\s*)?)?\)`)

func applyStorageScript(storage map[string]string, source string) {
	for _, m := range storageCall.FindAllStringSubmatch(source, -1) {
		switch m[1] {
		case "clear":
			for k := range storage {
				delete(storage, k)
			}
		case "removeItem":
			if key, ok := unquote(m[2]); ok {
				delete(storage, key)
			}
		case "setItem":
			key, okKey := unquote(m[2])
			val, okVal := unquote(m[3])
			if okKey && okVal {
				storage[key] = val
			}
		}
	}
}

func unquote(lit string) (string, bool) {
	if len(lit) < 2 {
		return "", false
	}
	if lit[0] == '\'' {
		inner := lit[1 : len(lit)-1]
		return strings.NewReplacer(`\'`, `'`, `\\`, `\`).Replace(inner), true
	}
	var s string
	if err := sonic.UnmarshalString(lit, &s); err != nil {
		return "", false
	}
	return s, true
}
