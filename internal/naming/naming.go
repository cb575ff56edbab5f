package naming

import (
	"strings"
	"unicode"

	"github.com/jinzhu/inflection"
)

// CamelToSnake converts a CamelCase string to snake_case.
// Consecutive uppercase letters (acronyms) are kept together:
// "ID" → "id", "UserID" → "user_id", "CreatedAt" → "created_at".
func CamelToSnake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				next := rune(0)
				if i+1 < len(runes) {
					next = runes[i+1]
				}
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && unicode.IsLower(next)) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SnakeToCamel converts a snake_case string to CamelCase: "user_tags" →
// "UserTags". A trailing "id" segment becomes "ID".
func SnakeToCamel(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		if part == "id" {
			b.WriteString("ID")
			continue
		}
		runes := []rune(part)
		runes[0] = unicode.ToUpper(runes[0])
		b.WriteString(string(runes))
	}
	return b.String()
}

// TableName derives the owner table of a struct type: "UserProfile" →
// "user_profiles".
func TableName(typeName string) string {
	return inflection.Plural(CamelToSnake(typeName))
}

// CollectionTable derives the table of a collection field from its owner
// type and field name: ("User", "Tags") → "user_tags".
func CollectionTable(owner, field string) string {
	return inflection.Plural(CamelToSnake(owner) + "_" + CamelToSnake(field))
}

// ForeignKey derives the column referencing owner: "User" → "user_id".
func ForeignKey(owner string) string {
	return CamelToSnake(owner) + "_id"
}

// Element derives the element column of a collection field: "Tags" → "tag".
func Element(field string) string {
	return inflection.Singular(CamelToSnake(field))
}
