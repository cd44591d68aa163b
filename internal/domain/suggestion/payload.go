package suggestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// InputKind tags how a raw agent result arrived.
type InputKind int

const (
	InputAbsent InputKind = iota
	InputText
	InputObject
	InputInvalid
)

var (
	ErrAbsentInput      = errors.New("agent result is absent")
	ErrUnsupportedInput = errors.New("agent result is neither text nor an object")
	ErrNoJSONObject     = errors.New("agent result contains no JSON object")
	ErrMalformedJSON    = errors.New("agent result contains malformed JSON")
)

// RawInput is the untrusted agent result, resolved once into one of
// absent, text (possibly with an embedded JSON object) or object.
type RawInput struct {
	Kind   InputKind
	Text   string
	Object map[string]any
}

func AbsentInput() RawInput { return RawInput{Kind: InputAbsent} }

func TextInput(s string) RawInput { return RawInput{Kind: InputText, Text: s} }

// ObjectInput wraps an already-parsed object. Nested values are
// re-encoded so typed Go slices and numbers look like decoded JSON.
func ObjectInput(m map[string]any) RawInput {
	if m == nil {
		return AbsentInput()
	}
	data, err := json.Marshal(m)
	if err != nil {
		return RawInput{Kind: InputInvalid}
	}
	decoded, err := decodeJSON(data)
	if err != nil {
		return RawInput{Kind: InputInvalid}
	}
	obj, _ := decoded.(map[string]any)
	return RawInput{Kind: InputObject, Object: obj}
}

// InputFromJSON resolves an encoded JSON value: a string becomes text, an
// object becomes an object, null or nothing is absent and anything else is
// invalid.
func InputFromJSON(data []byte) RawInput {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return AbsentInput()
	}
	v, err := decodeJSON(trimmed)
	if err != nil {
		return RawInput{Kind: InputInvalid}
	}
	switch t := v.(type) {
	case string:
		return TextInput(t)
	case map[string]any:
		return RawInput{Kind: InputObject, Object: t}
	}
	return RawInput{Kind: InputInvalid}
}

// DetectInput reads a raw body or file: a JSON value when it decodes as
// one, text otherwise.
func DetectInput(data []byte) RawInput {
	in := InputFromJSON(data)
	if in.Kind == InputInvalid {
		return TextInput(string(data))
	}
	return in
}

// InputOf resolves an arbitrary Go value. Structs and other typed values
// are round-tripped through JSON.
func InputOf(v any) RawInput {
	switch t := v.(type) {
	case nil:
		return AbsentInput()
	case RawInput:
		return t
	case string:
		return TextInput(t)
	case []byte:
		return TextInput(string(t))
	case json.RawMessage:
		return InputFromJSON(t)
	case map[string]any:
		return ObjectInput(t)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return RawInput{Kind: InputInvalid}
	}
	decoded, err := decodeJSON(data)
	if err != nil {
		return RawInput{Kind: InputInvalid}
	}
	if m, ok := decoded.(map[string]any); ok {
		return RawInput{Kind: InputObject, Object: m}
	}
	return RawInput{Kind: InputInvalid}
}

// reasoningBlocks are agent trace sections that may contain braces of
// their own and never hold the answer.
var reasoningBlocks = regexp.MustCompile(`(?s)<thinking>.*?</thinking>|<function_calls>.*?</function_calls>`)

// payload resolves the input to a JSON object.
func (in RawInput) payload() (map[string]any, error) {
	switch in.Kind {
	case InputAbsent:
		return nil, ErrAbsentInput
	case InputObject:
		return in.Object, nil
	case InputText:
		return parseText(in.Text)
	}
	return nil, ErrUnsupportedInput
}

func parseText(text string) (map[string]any, error) {
	text = strings.TrimSpace(reasoningBlocks.ReplaceAllString(text, ""))
	if text == "" {
		return nil, ErrAbsentInput
	}

	candidate, found := findJSONObject(text)
	if !found {
		candidate = text
	}
	v, err := decodeJSON([]byte(candidate))
	if err != nil {
		if found {
			return nil, ErrMalformedJSON
		}
		return nil, ErrNoJSONObject
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNoJSONObject
	}
	return m, nil
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// findJSONObject returns the first balanced {...} span of input, skipping
// braces that appear inside JSON strings.
func findJSONObject(input string) (string, bool) {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(input); i++ {
		ch := input[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch ch {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth == 0 {
				continue
			}
			depth--
			if depth == 0 {
				return input[start : i+1], true
			}
		}
	}
	return "", false
}
