// Package strutil derives storage and URL names from blueprint identifiers.
package strutil

import (
	"strings"
	"unicode"
)

// TableName returns the storage name of a model: "AuthUser" -> "auth_user".
func TableName(model string) string {
	return snakeCase(model)
}

// ColumnName returns the storage name of a field: "isPublic" -> "is_public".
func ColumnName(field string) string {
	return snakeCase(field)
}

// FKColumn returns the field name that stores a reference: "org" -> "org_id".
func FKColumn(reference string) string {
	return reference + "_id"
}

// PathSegment returns the URL segment of an entrypoint target: "AuthUser" ->
// "auth_user", "repos" -> "repos".
func PathSegment(target string) string {
	return snakeCase(target)
}

// LowerFirst lowercases the first rune. Default entrypoint and action
// aliases are derived with it: "AuthUser" -> "authUser".
func LowerFirst(s string) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	runes[0] = unicode.ToLower(runes[0])
	return string(runes)
}

// snakeCase splits s at lower-to-upper transitions and before the last
// capital of an acronym: "HTTPServer" -> "http_server", "userID" -> "user_id".
func snakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)

	for i, r := range runes {
		if !unicode.IsUpper(r) {
			b.WriteRune(r)
			continue
		}
		if i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prev != '_' && (unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower)) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
