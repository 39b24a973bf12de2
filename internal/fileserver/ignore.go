package fileserver

import (
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ignoreRules hides paths matching file_ignore_regex or file_ignore_glob.
type ignoreRules struct {
	regexps []*regexp.Regexp
	globs   []string
}

func newIgnoreRules(regexps, globs []string) (*ignoreRules, error) {
	rules := &ignoreRules{}
	for _, expr := range regexps {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid file_ignore_regex %q: %w", expr, err)
		}
		rules.regexps = append(rules.regexps, re)
	}
	for _, glob := range globs {
		if !doublestar.ValidatePattern(glob) {
			return nil, fmt.Errorf("invalid file_ignore_glob %q", glob)
		}
		rules.globs = append(rules.globs, glob)
	}
	return rules, nil
}

// ignored reports whether rel is hidden. Regular expressions may match
// anywhere in the path. Globs without a slash match the base name as well
// as the whole path.
func (r *ignoreRules) ignored(rel string) bool {
	for _, re := range r.regexps {
		if re.MatchString(rel) {
			return true
		}
	}
	for _, glob := range r.globs {
		if ok, _ := doublestar.Match(glob, rel); ok {
			return true
		}
		if !strings.Contains(glob, "/") {
			if ok, _ := doublestar.Match(glob, path.Base(rel)); ok {
				return true
			}
		}
	}
	return false
}
