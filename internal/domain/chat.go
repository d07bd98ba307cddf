package domain

// Chat roles used throughout the triage pipeline.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is the provider-agnostic chat message shape used by the
// dispatcher and LLM integrations.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Classification is the structured triage decision returned by the intent
// classifier. Reasoning is diagnostic only and never shown to the end user.
type Classification struct {
	Reasoning string `json:"reasoning"`
	Label     string `json:"classification"`
}
