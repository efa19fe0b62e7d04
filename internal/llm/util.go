package llm

import "strings"

// CleanJSONBlock strips markdown code fences that models sometimes wrap
// around JSON output despite the JSON response MIME type.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}

	body := strings.TrimPrefix(text, "```")
	// Drop a language tag such as "json" from the opening fence line.
	if idx := strings.Index(body, "\n"); idx >= 0 {
		tag := strings.TrimSpace(body[:idx])
		if tag == "" || (len(tag) < 20 && !strings.ContainsAny(tag, " {")) {
			body = body[idx+1:]
		}
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}
