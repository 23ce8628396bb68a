package database

import (
	"strings"
	"unicode"
)

// SnakeCase converts an entity name such as "UserInvite" into "user_invite".
// An underscore is inserted before an uppercase letter that follows a
// lowercase letter or a digit, then the whole string is lower-cased.
func SnakeCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)

	var prev rune
	for i, r := range name {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('_')
		}
		b.WriteRune(r)
		prev = r
	}
	return strings.ToLower(b.String())
}

// Pluralize appends "s" unless the name already ends in "s".
func Pluralize(name string) string {
	if strings.HasSuffix(name, "s") {
		return name
	}
	return name + "s"
}

// Candidates returns the physical table names tried for an entity, in order:
// the name as given, its snake_case form, and the pluralized snake_case form.
// Duplicates are removed, so the result never has more than three entries.
func Candidates(entity string) []string {
	snake := SnakeCase(entity)
	ordered := []string{entity, snake, Pluralize(snake)}

	out := make([]string, 0, len(ordered))
	seen := make(map[string]struct{}, len(ordered))
	for _, name := range ordered {
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
