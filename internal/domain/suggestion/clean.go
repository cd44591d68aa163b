package suggestion

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	tagPattern      = regexp.MustCompile(`<[^>]*>`)
	citationPattern = regexp.MustCompile(`\[\d+\]`)
)

// placeholders are agent filler values that mean "nothing here".
var placeholders = map[string]bool{
	"none":              true,
	"n/a":               true,
	"null":              true,
	"undefined":         true,
	"no acute symptoms": true,
	"nothing detected":  true,
}

// Clean coerces v into an ordered list of display-safe strings. v may be
// nil, a scalar, or an arbitrarily nested list; objects are skipped.
// Markup tags and [n] citation markers are removed, whitespace is
// collapsed, and empty or placeholder values are dropped.
func Clean(v any) []string {
	var out []string
	collect(v, &out)
	return out
}

func collect(v any, out *[]string) {
	switch t := v.(type) {
	case nil:
		return
	case []any:
		for _, item := range t {
			collect(item, out)
		}
	case []string:
		for _, item := range t {
			collect(item, out)
		}
	case map[string]any:
		return
	default:
		s, ok := scalarString(t)
		if !ok {
			return
		}
		if cleaned := cleanString(s); cleaned != "" {
			*out = append(*out, cleaned)
		}
	}
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32), true
	case int, int32, int64, uint, uint32, uint64:
		return fmt.Sprintf("%d", t), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}

func cleanString(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	for citationPattern.MatchString(s) {
		s = citationPattern.ReplaceAllString(s, "")
	}
	s = strings.Join(strings.Fields(s), " ")
	if s == "" || placeholders[strings.ToLower(s)] {
		return ""
	}
	return s
}

// cleanJoined cleans v and joins the surviving parts with ", ".
func cleanJoined(v any) string {
	return strings.Join(Clean(v), ", ")
}
