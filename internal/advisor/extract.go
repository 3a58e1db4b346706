package advisor

import "strings"

// ExtractJSON pulls the JSON object or array out of a model reply. Replies
// routinely arrive wrapped in markdown code fences or surrounded by prose,
// so fences are stripped first and then the outermost object or array is
// sliced out. Returns the cleaned text unchanged when no JSON is found.
func ExtractJSON(text string) string {
	if text == "" {
		return ""
	}
	clean := strings.ReplaceAll(text, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	firstCurly := strings.Index(clean, "{")
	firstSquare := strings.Index(clean, "[")

	start := firstCurly
	endChar := "}"
	if firstCurly == -1 || (firstSquare != -1 && firstSquare < firstCurly) {
		start = firstSquare
		endChar = "]"
	}
	if start == -1 {
		return clean
	}
	end := strings.LastIndex(clean, endChar)
	if end <= start {
		return clean
	}
	return clean[start : end+1]
}
