package transform

import (
	"fmt"
	"regexp"
	"strings"
)

// CheckSpec statically verifies a transform argument where that is possible
// without input data. Arguments containing unresolved placeholders cannot be
// checked and pass. Used by validation only; execution never calls it.
func CheckSpec(name, arg string) error {
	if strings.Contains(arg, "${") {
		return nil
	}
	switch name {
	case "regexp":
		pattern, _, err := splitRegexpSpec(arg)
		if err != nil {
			return err
		}
		if _, err := regexp.Compile(strings.ReplaceAll(pattern, allSentinel, `(?s:.*)`)); err != nil {
			return fmt.Errorf("%w: %v", ErrSpec, err)
		}
	}
	return nil
}
