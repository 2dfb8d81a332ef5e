/*
	Exclusion rules decide which project paths never make it into a package.

	A rule matches a slash-separated path relative to the project root in
	one of three ways, tried in order:

	  - exactly:         "composer.lock" matches "composer.lock"
	  - as a directory:  "storage" matches "storage/logs/laravel.log"
	  - as a glob:       "*.log" matches "storage/laravel.log"

	In globs `*` stands for one or more of any character, slashes included,
	and the pattern is anchored at both ends.  Matching is case-sensitive and
	never touches the filesystem.
*/
package filters

import (
	"regexp"
	"strings"
)

// ShouldSkip reports whether any rule excludes path.
// Rules are compiled per call; hold a Matcher when checking many paths.
func ShouldSkip(path string, rules []string) bool {
	_, skip := NewMatcher(rules).Match(path)
	return skip
}

type Matcher struct {
	rules []rule
}

type rule struct {
	text string
	glob *regexp.Regexp // nil unless text contains a '*'
}

func NewMatcher(rules []string) *Matcher {
	m := &Matcher{rules: make([]rule, 0, len(rules))}
	for _, text := range rules {
		if text == "" {
			continue
		}
		r := rule{text: text}
		if strings.Contains(text, "*") {
			r.glob = compileGlob(text)
		}
		m.rules = append(m.rules, r)
	}
	return m
}

// Match returns the first rule excluding path, if any.
func (m *Matcher) Match(path string) (string, bool) {
	if m == nil {
		return "", false
	}
	for _, r := range m.rules {
		if path == r.text || strings.HasPrefix(path, r.text+"/") {
			return r.text, true
		}
		if r.glob != nil && r.glob.MatchString(path) {
			return r.text, true
		}
	}
	return "", false
}

// Rules returns the effective rule texts, empty rules dropped.
func (m *Matcher) Rules() []string {
	texts := make([]string, len(m.rules))
	for i, r := range m.rules {
		texts[i] = r.text
	}
	return texts
}

// Every literal chunk is quoted, so compilation cannot fail whatever
// the rule text holds.
func compileGlob(text string) *regexp.Regexp {
	chunks := strings.Split(text, "*")
	for i := range chunks {
		chunks[i] = regexp.QuoteMeta(chunks[i])
	}
	return regexp.MustCompile("^" + strings.Join(chunks, ".+") + "$")
}
