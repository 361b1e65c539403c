package util

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMissingKey is returned by Format when a placeholder has no value.
var ErrMissingKey = errors.New("missing template key")

// ErrMalformedTemplate is returned by Format for unbalanced braces or
// positional placeholders.
var ErrMalformedTemplate = errors.New("malformed template")

// Format substitutes {name} placeholders in text with values from args.
// Doubled braces ({{ and }}) render as literal braces. A format spec or
// conversion suffix ({name:>10}, {name!r}) is accepted and ignored.
func Format(text string, args map[string]any) (string, error) {
	if !strings.ContainsAny(text, "{}") {
		return text, nil
	}

	var b strings.Builder

	b.Grow(len(text))

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch c {
		case '{':
			if i+1 < len(text) && text[i+1] == '{' {
				b.WriteByte('{')
				i++

				continue
			}

			end := strings.IndexByte(text[i+1:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{'", ErrMalformedTemplate)
			}

			field := text[i+1 : i+1+end]
			if cut := strings.IndexAny(field, ":!"); cut >= 0 {
				field = field[:cut]
			}

			if field == "" || strings.ContainsAny(field, "{") {
				return "", fmt.Errorf("%w: invalid placeholder %q", ErrMalformedTemplate, text[i:i+2+end])
			}

			v, ok := args[field]
			if !ok {
				return "", fmt.Errorf("%w: %s", ErrMissingKey, field)
			}

			b.WriteString(fmt.Sprint(v))

			i += end + 1
		case '}':
			if i+1 < len(text) && text[i+1] == '}' {
				b.WriteByte('}')
				i++

				continue
			}

			return "", fmt.Errorf("%w: single '}'", ErrMalformedTemplate)
		default:
			b.WriteByte(c)
		}
	}

	return b.String(), nil
}
