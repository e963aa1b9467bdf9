// Package message defines direct messages and conversations.
package message

import "time"

// DirectMessage is a single message between two users. Content is sealed at
// rest when Encrypted is true; Ciphertext then holds the sealed bytes and
// Content is empty.
type DirectMessage struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content,omitempty"`
	Ciphertext []byte    `json:"ciphertext,omitempty"`
	Encrypted  bool      `json:"encrypted"`
	CreatedAt  time.Time `json:"created_at"`
}

// Conversation groups the message history between two participants.
type Conversation struct {
	ID           string          `json:"id"`
	Participants []string        `json:"participants"`
	Messages     []DirectMessage `json:"messages"`
	LastMessage  DirectMessage   `json:"last_message"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Involves reports whether both users participate in the conversation.
func (c Conversation) Involves(a, b string) bool {
	return c.has(a) && c.has(b)
}

func (c Conversation) has(id string) bool {
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}
