package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacoelho/dq/internal/dq/value"
)

// allSentinel in a pattern stands for "match everything, newlines included".
const allSentinel = `\ALL`

// applyRegexp implements `regexp:/pattern/replacement/`. Replacement strings
// use Go's capture-group references (`$1`, `${name}`). A malformed spec or
// pattern keeps the original value.
func applyRegexp(v any, arg string) (any, error) {
	pattern, replacement, err := splitRegexpSpec(arg)
	if err != nil {
		return nil, err
	}
	re, err := regexp.Compile(strings.ReplaceAll(pattern, allSentinel, `(?s:.*)`))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpec, err)
	}
	return re.ReplaceAllString(value.Stringify(v), replacement), nil
}

// splitRegexpSpec cuts /pattern/replacement/ at its unescaped delimiters.
// Literal slashes inside either section are written `\/`.
func splitRegexpSpec(arg string) (pattern, replacement string, err error) {
	if !strings.HasPrefix(arg, "/") {
		return "", "", fmt.Errorf("%w: regexp spec %q is not /pattern/replacement/", ErrSpec, arg)
	}
	var bounds []int
	for i := 0; i < len(arg); i++ {
		if arg[i] == '\\' {
			i++
			continue
		}
		if arg[i] == '/' {
			bounds = append(bounds, i)
		}
	}
	if len(bounds) != 3 || bounds[2] != len(arg)-1 {
		return "", "", fmt.Errorf("%w: regexp spec %q is not /pattern/replacement/", ErrSpec, arg)
	}
	pattern = strings.ReplaceAll(arg[bounds[0]+1:bounds[1]], `\/`, "/")
	replacement = strings.ReplaceAll(arg[bounds[1]+1:bounds[2]], `\/`, "/")
	return pattern, replacement, nil
}
