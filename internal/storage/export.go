package storage

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExportMarkdown renders a script and its last captured output as a markdown document.
func ExportMarkdown(s *Script) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("# %s\n\n", s.Title))
	b.WriteString(fmt.Sprintf("- **Script:** %d\n", s.ID))
	b.WriteString(fmt.Sprintf("- **Created:** %s\n", s.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString("\n---\n\n")

	b.WriteString(fmt.Sprintf("```python\n%s\n```\n", strings.TrimRight(s.Content, "\n")))

	if s.Output != nil && *s.Output != "" {
		b.WriteString(fmt.Sprintf("\n<details>\n<summary>Output</summary>\n\n```\n%s\n```\n</details>\n", strings.TrimRight(*s.Output, "\n")))
	}

	return b.String()
}

// ExportJSON renders a script as formatted JSON.
func ExportJSON(s *Script) ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}
