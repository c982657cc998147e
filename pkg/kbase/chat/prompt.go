package chat

import (
	"fmt"
	"strings"

	"github.com/mikepea/kbase/pkg/kbase/catalog"
)

const promptHeader = `You are the assistant of a university knowledge base.
Answer questions about the resources listed below and point users to them by title.
If nothing in the catalog fits, say so briefly and suggest a related subject.`

// Message is one entry of the conversation history sent by clients.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// SystemPrompt lists up to limit online resources; limit <= 0 lists all.
func SystemPrompt(resources []catalog.Resource, limit int) string {
	var b strings.Builder
	b.WriteString(promptHeader)
	b.WriteString("\n\nCatalog:\n")

	n := 0
	for _, r := range resources {
		if !r.Online() {
			continue
		}
		if limit > 0 && n == limit {
			break
		}
		n++
		fmt.Fprintf(&b, "- %s [%s]", r.Title, r.Type)
		var facets []string
		for _, f := range []string{r.Department, r.Subject, string(r.Level)} {
			if f != "" {
				facets = append(facets, f)
			}
		}
		if len(facets) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(facets, ", "))
		}
		if len(r.Tags) > 0 {
			fmt.Fprintf(&b, " tags: %s", strings.Join(r.Tags, ", "))
		}
		b.WriteByte('\n')
	}
	if n == 0 {
		b.WriteString("(no resources are online)\n")
	}
	return b.String()
}

// Conversation builds the turns for one question. Only the last maxHistory
// history entries are kept; entries with unknown roles or no text are dropped.
func Conversation(system string, history []Message, message string, maxHistory int) []Turn {
	kept := make([]Turn, 0, len(history))
	for _, m := range history {
		text := strings.TrimSpace(m.Text)
		if text == "" {
			continue
		}
		switch strings.ToLower(m.Role) {
		case RoleUser:
			kept = append(kept, Turn{Role: RoleUser, Content: text})
		case RoleAssistant, "model", "bot":
			kept = append(kept, Turn{Role: RoleAssistant, Content: text})
		}
	}
	if maxHistory >= 0 && len(kept) > maxHistory {
		kept = kept[len(kept)-maxHistory:]
	}

	turns := make([]Turn, 0, len(kept)+2)
	turns = append(turns, Turn{Role: RoleSystem, Content: system})
	turns = append(turns, kept...)
	return append(turns, Turn{Role: RoleUser, Content: strings.TrimSpace(message)})
}
