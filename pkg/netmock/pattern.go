package netmock

import (
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	herrors "github.com/ashparshp/hairone/pkg/errors"
)

var paramSegment = regexp.MustCompile(`(^|/):([A-Za-z_][A-Za-z0-9_]*)`)

// pattern is a compiled URL glob. Globs are matched against the URL with
// its scheme, query and fragment removed, so "**/api/auth/otp" matches
// "http://localhost:5000/api/auth/otp?x=1".
type pattern struct {
	source string
	glob   string
	params []string
	re     *regexp.Regexp
}

func compilePattern(source string) (*pattern, error) {
	src := strings.TrimSpace(source)
	if src == "" {
		return nil, herrors.New(herrors.ErrCodePatternInvalid, "empty route pattern")
	}
	stripped := stripURL(src)

	var names []string
	glob := paramSegment.ReplaceAllStringFunc(stripped, func(m string) string {
		sub := paramSegment.FindStringSubmatch(m)
		names = append(names, sub[2])
		return sub[1] + "*"
	})
	if !doublestar.ValidatePattern(glob) {
		return nil, herrors.New(herrors.ErrCodePatternInvalid, "invalid route pattern").
			WithContext("pattern", source)
	}

	p := &pattern{source: source, glob: glob, params: names}
	if len(names) > 0 {
		re, err := regexp.Compile("^" + globToRegexp(stripped) + "$")
		if err != nil {
			return nil, herrors.Wrap(err, herrors.ErrCodePatternInvalid, "invalid route parameters").
				WithContext("pattern", source)
		}
		p.re = re
	}
	return p, nil
}

func (p *pattern) match(rawURL string) (map[string]string, bool) {
	target := stripURL(rawURL)
	ok, err := doublestar.Match(p.glob, target)
	if err != nil || !ok {
		return nil, false
	}
	if p.re == nil {
		return nil, true
	}
	params := make(map[string]string, len(p.params))
	if m := p.re.FindStringSubmatch(target); m != nil {
		for i, name := range p.re.SubexpNames() {
			if name != "" {
				params[name] = m[i]
			}
		}
	}
	return params, true
}

// stripURL drops the scheme, query and fragment.
func stripURL(s string) string {
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		s = s[:i]
	}
	return s
}

// globToRegexp translates the subset of glob syntax used alongside :name
// parameters. Character classes and alternation are matched literally.
func globToRegexp(glob string) string {
	var sb strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			sb.WriteString("(?:.*/)?")
			i += 2
		case strings.HasPrefix(glob[i:], "**"):
			sb.WriteString(".*")
			i++
		case c == '*':
			sb.WriteString("[^/]*")
		case c == '?':
			sb.WriteString("[^/]")
		case c == ':' && (i == 0 || glob[i-1] == '/'):
			loc := paramSegment.FindStringSubmatchIndex(glob[i:])
			if loc == nil || loc[0] != 0 {
				sb.WriteString(regexp.QuoteMeta(string(c)))
				continue
			}
			name := glob[i+loc[4] : i+loc[5]]
			sb.WriteString("(?P<" + name + ">[^/]+)")
			i += loc[5] - 1
		default:
			sb.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return sb.String()
}

// MatchURL reports whether rawURL matches glob under the same rules as
// route patterns.
func MatchURL(glob, rawURL string) (bool, error) {
	p, err := compilePattern(glob)
	if err != nil {
		return false, err
	}
	_, ok := p.match(rawURL)
	return ok, nil
}
