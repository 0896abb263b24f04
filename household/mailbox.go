package household

import "strings"

// SendMessage appends a message from childID. Only children send messages.
func SendMessage(s AppState, childID, content string, at Timestamp) (AppState, SecretMessage, error) {
	child, ok := s.FindUser(childID)
	if !ok {
		return s, SecretMessage{}, ErrNotFound
	}
	if !child.IsChild() {
		return s, SecretMessage{}, &ValidationError{Field: "fromChildId", Message: "only children send messages"}
	}
	if strings.TrimSpace(content) == "" {
		return s, SecretMessage{}, &ValidationError{Field: "content", Message: "must not be empty"}
	}
	msg := SecretMessage{
		ID:            NewID(),
		FromChildID:   child.ID,
		FromChildName: child.Name,
		Content:       content,
		Timestamp:     at,
	}
	next := s.Clone()
	next.Messages = append(next.Messages, msg)
	return next, msg, nil
}

// MarkMessageRead sets IsRead on the message. Marking an already-read
// message is a no-op; the flag never goes back to false.
func MarkMessageRead(s AppState, id string) (AppState, error) {
	next := s.Clone()
	for i := range next.Messages {
		if next.Messages[i].ID == id {
			next.Messages[i].IsRead = true
			return next, nil
		}
	}
	return s, ErrNotFound
}

// UnreadCount counts unread messages in the snapshot.
func UnreadCount(messages []SecretMessage) int {
	n := 0
	for _, m := range messages {
		if !m.IsRead {
			n++
		}
	}
	return n
}
