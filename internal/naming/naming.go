// Package naming holds the identifier and string helpers shared by the
// generated-file templates: safe JavaScript identifiers, kebab/pascal case
// conversion, short path hashes and JS literal quoting.
package naming

import (
	"encoding/json"
	"fmt"
	"hash/crc32"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var reservedWords = map[string]bool{
	"await": true, "break": true, "case": true, "catch": true, "class": true,
	"const": true, "continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "enum": true, "export": true, "extends": true,
	"false": true, "finally": true, "for": true, "function": true, "if": true,
	"implements": true, "import": true, "in": true, "instanceof": true, "interface": true,
	"let": true, "new": true, "null": true, "package": true, "private": true,
	"protected": true, "public": true, "return": true, "static": true, "super": true,
	"switch": true, "this": true, "throw": true, "true": true, "try": true,
	"typeof": true, "var": true, "void": true, "while": true, "with": true,
	"yield": true, "arguments": true, "eval": true, "undefined": true, "NaN": true,
	"Infinity": true,
}

var crcTable = crc32.MakeTable(crc32.Castagnoli)

// SafeVariableName turns s into a valid JavaScript identifier. Characters
// outside [A-Za-z0-9_$] become '_', a leading digit is prefixed with '_' and
// reserved words are prefixed with '_'.
func SafeVariableName(s string) string {
	if s == "" {
		return "_"
	}
	var b strings.Builder
	for i, r := range s {
		switch {
		case r == '_' || r == '$' || (r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))):
			if i == 0 && unicode.IsDigit(r) {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if reservedWords[name] {
		return "_" + name
	}
	return name
}

// Words splits s on separators and lower-to-upper case boundaries.
func Words(s string) []string {
	var words []string
	var current []rune
	runes := []rune(s)
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1])):
			flush()
			current = append(current, r)
		case unicode.IsUpper(r) && i > 0 && i+1 < len(runes) && unicode.IsUpper(runes[i-1]) && unicode.IsLower(runes[i+1]):
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	return words
}

// KebabCase converts s to lower-case words joined by '-'.
func KebabCase(s string) string {
	lower := cases.Lower(language.Und)
	words := Words(s)
	for i, w := range words {
		words[i] = lower.String(w)
	}
	return strings.Join(words, "-")
}

// PascalCase converts s to words with an upper-case initial, joined.
func PascalCase(s string) string {
	title := cases.Title(language.Und)
	words := Words(s)
	for i, w := range words {
		words[i] = title.String(w)
	}
	return strings.Join(words, "")
}

// CamelCase is PascalCase with a lower-case first word.
func CamelCase(s string) string {
	lower := cases.Lower(language.Und)
	title := cases.Title(language.Und)
	words := Words(s)
	for i, w := range words {
		if i == 0 {
			words[i] = lower.String(w)
		} else {
			words[i] = title.String(w)
		}
	}
	return strings.Join(words, "")
}

// ShortHash returns an 8 character hex digest of s.
func ShortHash(s string) string {
	return fmt.Sprintf("%08x", crc32.Checksum([]byte(s), crcTable))
}

// Stem returns the base name of p without its extension.
func Stem(p string) string {
	base := path.Base(strings.ReplaceAll(p, "\\", "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// Quote renders s as a JavaScript string literal.
func Quote(s string) string {
	data, err := json.Marshal(s)
	if err != nil {
		return `""`
	}
	return string(data)
}

// Literal renders v as a JavaScript/JSON literal with two-space indentation
// after the first line.
func Literal(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode literal: %w", err)
	}
	return string(data), nil
}

// Import renders a default import statement.
func Import(src, name string) string {
	return fmt.Sprintf("import %s from %s", name, Quote(src))
}

// ArrayFromRaw renders items, which are already JS expressions, as an array literal.
func ArrayFromRaw(items []string) string {
	if len(items) == 0 {
		return "[]"
	}
	return "[\n  " + strings.Join(items, ",\n  ") + "\n]"
}

// Entry is a key and a raw JS expression.
type Entry struct {
	Key   string
	Value string
}

// ObjectFromRawEntries renders entries as an object literal, quoting keys
// that are not plain identifiers.
func ObjectFromRawEntries(entries []Entry) string {
	if len(entries) == 0 {
		return "{}"
	}
	lines := make([]string, len(entries))
	for i, e := range entries {
		key := e.Key
		if SafeVariableName(key) != key {
			key = Quote(key)
		}
		lines[i] = key + ": " + e.Value
	}
	return "{\n  " + strings.Join(lines, ",\n  ") + "\n}"
}
