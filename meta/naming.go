package meta

import (
	"strings"
	"unicode"
)

// toKebabCase converts a PascalCase Go struct name to kebab-case.
// e.g. "UserAccount" → "user-account", "HTTPServer" → "httpserver"
func toKebabCase(name string) string {
	if name == "" {
		return ""
	}
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(name[i-1] >= 'A' && name[i-1] <= 'Z') {
				b.WriteByte('-')
			}
			b.WriteByte(byte(r - 'A' + 'a'))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// defaultTypeID derives a TypeID from a Go struct name. A trailing DTO
// suffix is dropped so PersonDTO and Person share the wire name "person".
func defaultTypeID(goName string) TypeID {
	for _, suffix := range []string{"DTO", "Dto"} {
		if trimmed, ok := strings.CutSuffix(goName, suffix); ok && trimmed != "" {
			goName = trimmed
			break
		}
	}
	return TypeID(toKebabCase(goName))
}

// toLowerCamel converts an exported Go field name to its default wire name.
// A leading acronym is lowered as a unit: "ID" → "id", "URLPath" → "urlPath".
func toLowerCamel(name string) string {
	runes := []rune(name)
	n := 0
	for n < len(runes) && unicode.IsUpper(runes[n]) {
		n++
	}
	if n == 0 {
		return name
	}
	if n > 1 && n < len(runes) {
		// the last upper rune starts the next word
		n--
	}
	for i := 0; i < n; i++ {
		runes[i] = unicode.ToLower(runes[i])
	}
	return string(runes)
}
