package suggestion

import "strings"

// BuildTranscript picks the text sent for analysis. Typed notes win;
// otherwise the conversation turns are rendered as "ROLE: content" lines.
func BuildTranscript(notes string, turns []Turn) string {
	if n := strings.TrimSpace(notes); n != "" {
		return n
	}
	var lines []string
	for _, t := range turns {
		content := strings.TrimSpace(t.Content)
		if content == "" {
			continue
		}
		role := strings.ToUpper(strings.TrimSpace(t.Role))
		if role == "" {
			role = RolePatient
		}
		lines = append(lines, role+": "+content)
	}
	return strings.Join(lines, "\n")
}
