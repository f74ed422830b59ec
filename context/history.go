package context

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// History roles, carried from the teacher's conversation history roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultMaxMessages bounds how many turns History.Append keeps, matching
// the teacher's DefaultMaxMessages trimming default.
const DefaultMaxMessages = 1000

// Message is one turn of a dispatcher call's history, adapted from
// _examples/kadirpekel-hector/context/conversation.go's Message (trimmed:
// no per-message metadata map, no ID — the Dispatcher only round-trips
// role+content+timestamp as an opaque string, it does not index messages).
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// History is the bounded transcript threaded through the Dispatcher's
// `history` input/output (spec.md §6: "history: optional string",
// flags.use-history). It is adapted from the teacher's
// ConversationHistory/ConversationManager pair, collapsed to the one
// responsibility the stateless-per-call Dispatcher contract needs:
// decode an opaque string into turns, append the current call's turns,
// re-encode. The teacher's session store, context map, per-role queries,
// and statistics are dropped — nothing in the Dispatcher's call shape uses
// a persistent session identity.
type History struct {
	Messages    []Message `json:"messages"`
	MaxMessages int       `json:"-"`
}

// DecodeHistory parses the Dispatcher's opaque `history` string (spec.md
// §6) into a History. An empty string decodes to an empty History rather
// than an error, matching a first call with no prior turns.
func DecodeHistory(encoded string) (*History, error) {
	h := &History{MaxMessages: DefaultMaxMessages}
	if strings.TrimSpace(encoded) == "" {
		return h, nil
	}
	if err := json.Unmarshal([]byte(encoded), h); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	if h.MaxMessages <= 0 {
		h.MaxMessages = DefaultMaxMessages
	}
	return h, nil
}

// Append adds a turn and trims from the front once MaxMessages is exceeded,
// matching the teacher's trimMessagesIfNeeded.
func (h *History) Append(role, content string) {
	h.Messages = append(h.Messages, Message{Role: role, Content: content, Timestamp: time.Now()})
	if len(h.Messages) > h.MaxMessages {
		h.Messages = h.Messages[len(h.Messages)-h.MaxMessages:]
	}
}

// Encode renders the History back to the opaque string form the Dispatcher
// returns to the caller for the next call's `history` input.
func (h *History) Encode() (string, error) {
	b, err := json.Marshal(h)
	if err != nil {
		return "", fmt.Errorf("encode history: %w", err)
	}
	return string(b), nil
}

// FormatForPrompt renders the transcript as the teacher's
// GetContextForLLM did, for prepending to a task's instructions when
// flags.use-history is set.
func (h *History) FormatForPrompt() string {
	if len(h.Messages) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Conversation history:\n")
	for _, msg := range h.Messages {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
	}
	return b.String()
}
