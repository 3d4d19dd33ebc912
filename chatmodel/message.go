package chatmodel

import "time"

// Role identifies the speaker for a UIMessage.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// MessageStatus is the lifecycle status of a UIMessage as a whole.
type MessageStatus string

const (
	MessageStatusStreaming MessageStatus = "streaming"
	MessageStatusDone      MessageStatus = "done"
)

// UIMessage is a single turn of visible conversation. At most one assistant
// message is Status=streaming at any time; once Status=done, Parts are
// immutable (§3).
type UIMessage struct {
	ID        string
	Role      Role
	Parts     []UIMessagePart
	Status    MessageStatus
	CreatedAt time.Time
}

// Clone returns a shallow copy of m with its own Parts slice, safe to hand to
// subscribers as an immutable snapshot.
func (m UIMessage) Clone() UIMessage {
	parts := make([]UIMessagePart, len(m.Parts))
	copy(parts, m.Parts)
	m.Parts = parts
	return m
}
