package llm

// Roles accepted by chat completion backends.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry of a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the first choice of a completion plus token accounting.
type Response struct {
	Content string
	// Truncated is set when the backend stopped at max_tokens.
	Truncated    bool
	PromptTokens int
	ReplyTokens  int
}
