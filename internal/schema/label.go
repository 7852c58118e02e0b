package schema

import (
	"fmt"
	"strings"
)

// TitleCase humanizes a snake_case identifier ("customer_id" -> "Customer ID"),
// matching the label generation of the server's UI compiler.
func TitleCase(s string) string {
	words := strings.Split(s, "_")
	for i, word := range words {
		if strings.EqualFold(word, "id") {
			words[i] = "ID"
			continue
		}
		if word == "" {
			continue
		}
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}

// RecordLabel derives the display label of a fetched record: name, else
// title, else the record id.
func RecordLabel(rec map[string]any) string {
	for _, key := range []string{"name", "title"} {
		if v, ok := rec[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	if v, ok := rec["id"]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// RecordID extracts the identifier of a record, nil when absent.
func RecordID(rec map[string]any) any {
	return rec["id"]
}
