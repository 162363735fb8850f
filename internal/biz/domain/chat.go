package domain

// Chat is a read-only projection of an external conversation. Not persisted.
type Chat struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	IsGroup      bool   `json:"isGroup"`
	UnreadCount  int    `json:"unreadCount"`
	LastMessage  string `json:"lastMessage,omitempty"`
	TimestampSec int64  `json:"timestamp,omitempty"`
}

// Contact is a read-only projection of an external contact.
type Contact struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Number     string `json:"number"`
	IsGroup    bool   `json:"isGroup"`
	IsBusiness bool   `json:"isBusiness"`
}
