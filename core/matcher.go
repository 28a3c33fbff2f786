package core

import (
	"fmt"
	"regexp"
	"strings"
)

// NameMatcher decides whether an identifier follows the test naming
// convention. It is applied to module name stems and to function names.
type NameMatcher interface {
	Match(name string) bool
}

// SubstringMatcher matches names containing Token. The match is case-sensitive.
type SubstringMatcher struct {
	Token string
}

func (m SubstringMatcher) Match(name string) bool {
	return strings.Contains(name, m.Token)
}

// DefaultMatcher matches any name containing "test".
var DefaultMatcher NameMatcher = SubstringMatcher{Token: "test"}

var conventionPattern = regexp.MustCompile(`(?:^|[_./-])[Tt]est`)

// ConventionMatcher is the stricter convention: "test" or "Test" at the start of
// the name or right after one of "_", ".", "/", "-".
type ConventionMatcher struct{}

func (ConventionMatcher) Match(name string) bool {
	return conventionPattern.MatchString(name)
}

// NewMatcher returns the matcher registered under name ("substring" or
// "convention"). An empty name selects the substring matcher.
func NewMatcher(name string) (NameMatcher, error) {
	switch name {
	case "", "substring":
		return DefaultMatcher, nil
	case "convention":
		return ConventionMatcher{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown naming convention %q", ErrInvalidFilter, name)
	}
}

// Filter narrows discovery. Patterns are regular expressions; an empty pattern
// imposes no restriction.
type Filter struct {
	IncludeModules string
	ExcludeModules string
	IncludeUnits   string
	ExcludeUnits   string
	// Select restricts discovery to a single unit, "module/path:unit_name". The
	// module part is matched against the slash-separated relative path or its
	// suffix.
	Select string
}

type compiledFilter struct {
	includeModules, excludeModules *regexp.Regexp
	includeUnits, excludeUnits     *regexp.Regexp
	selectModule, selectUnit       string
}

func (f Filter) compile() (*compiledFilter, error) {
	cf := &compiledFilter{}
	for _, p := range []struct {
		expr string
		dst  **regexp.Regexp
	}{
		{f.IncludeModules, &cf.includeModules},
		{f.ExcludeModules, &cf.excludeModules},
		{f.IncludeUnits, &cf.includeUnits},
		{f.ExcludeUnits, &cf.excludeUnits},
	} {
		if p.expr == "" {
			continue
		}
		re, err := regexp.Compile(p.expr)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %w", ErrInvalidFilter, p.expr, err)
		}
		*p.dst = re
	}

	if f.Select != "" {
		i := strings.LastIndex(f.Select, ":")
		if i <= 0 || i == len(f.Select)-1 {
			return nil, fmt.Errorf("%w: selector %q must be <module>:<unit>", ErrInvalidFilter, f.Select)
		}
		cf.selectModule = strings.TrimPrefix(f.Select[:i], "./")
		cf.selectUnit = f.Select[i+1:]
	}

	return cf, nil
}

func (cf *compiledFilter) module(path string) bool {
	if cf.selectModule != "" && path != cf.selectModule && !strings.HasSuffix(path, "/"+cf.selectModule) &&
		!strings.HasSuffix(cf.selectModule, "/"+path) {
		return false
	}
	if cf.includeModules != nil && !cf.includeModules.MatchString(path) {
		return false
	}
	if cf.excludeModules != nil && cf.excludeModules.MatchString(path) {
		return false
	}
	return true
}

func (cf *compiledFilter) unit(name string) bool {
	if cf.selectUnit != "" && name != cf.selectUnit {
		return false
	}
	if cf.includeUnits != nil && !cf.includeUnits.MatchString(name) {
		return false
	}
	if cf.excludeUnits != nil && cf.excludeUnits.MatchString(name) {
		return false
	}
	return true
}
