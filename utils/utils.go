package utils

import (
	"fmt"
	"net/url"
)

// UrlQuery escapes s for use as a URL query parameter value. City and state
// names can carry spaces, commas, and diacritics, so plain space folding is
// not enough.
func UrlQuery(s string) string { return url.QueryEscape(s) }

// Str renders a JSON-decoded scalar as a string, mapping nil to "".
func Str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}
