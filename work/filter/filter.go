package filter

import (
	"github.com/grafana/regexp"

	"oxycors/work/logger"
)

// URLFilter decides which upstream URLs the proxy may fetch. An exclude match
// always wins; an include pattern, when set, must match.
//
// Patterns use grafana/regexp syntax and are matched against the whole
// absolute URL. A filter with neither pattern allows everything and reports
// itself inactive. A URLFilter is read-only after construction and safe for
// concurrent use.
type URLFilter struct {
	include *regexp.Regexp
	exclude *regexp.Regexp
}

// NewURLFilter compiles the include and exclude patterns. Empty patterns are
// skipped and invalid ones are logged and treated as unset.
func NewURLFilter(include, exclude string, log logger.Interface) *URLFilter {
	if log == nil {
		log = logger.Discard()
	}
	return &URLFilter{
		include: compile("include", include, log),
		exclude: compile("exclude", exclude, log),
	}
}

func compile(name, pattern string, log logger.Interface) *regexp.Regexp {
	if pattern == "" {
		return nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		log.Error("{filter/filter - NewURLFilter} Failed to compile %s regex '%s': %v", name, pattern, err)
		return nil
	}
	log.Debug("{filter/filter - NewURLFilter} Compiled %s regex: '%s'", name, pattern)
	return compiled
}

// Active reports whether any pattern is in effect.
func (f *URLFilter) Active() bool {
	return f != nil && (f.include != nil || f.exclude != nil)
}

// Allowed reports whether rawURL may be fetched. A nil filter allows everything.
func (f *URLFilter) Allowed(rawURL string) bool {
	if f == nil {
		return true
	}
	if f.exclude != nil && f.exclude.MatchString(rawURL) {
		return false
	}
	if f.include != nil && !f.include.MatchString(rawURL) {
		return false
	}
	return true
}
