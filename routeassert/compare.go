package routeassert

import (
	"fmt"
	"unicode"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
)

// exportedOnly drops unexported struct fields from comparisons.
var exportedOnly = cmp.FilterPath(func(p cmp.Path) bool {
	sf, ok := p.Last().(cmp.StructField)
	if !ok {
		return false
	}
	r, _ := utf8.DecodeRuneInString(sf.Name())
	return !unicode.IsUpper(r)
}, cmp.Ignore())

// equal compares textually when either side is a string and structurally
// otherwise. The diff is empty for textual comparisons.
func equal(expected, actual any) (bool, string) {
	_, es := expected.(string)
	_, as := actual.(string)
	if es || as {
		return fmt.Sprint(expected) == fmt.Sprint(actual), ""
	}

	if cmp.Equal(expected, actual, exportedOnly) {
		return true, ""
	}
	return false, cmp.Diff(expected, actual, exportedOnly)
}
