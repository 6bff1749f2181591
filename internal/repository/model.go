package repository

import (
	"encoding/json"
	"time"
)

type SessionStatus string

const (
	SessionStatusActive SessionStatus = "active"
	SessionStatusClosed SessionStatus = "closed"
)

// Message is one captured line of a session's conversation. The ID is the
// platform message ID and is used to deduplicate against late-fetched history.
type Message struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	AuthorID   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	Content    string    `json:"content"`
}

// Session is the unit of pairing, keyed by its text channel ID. Members are
// ordered by when each asked for a partner, longest-waiting first.
type Session struct {
	ChannelID      string
	Members        []string
	CreatedAt      time.Time
	LastActivityAt time.Time
	Messages       []Message
	Status         SessionStatus
}

type Subject struct {
	ID              int64
	Name            string
	ChannelID       string
	Message         string
	Footer          string
	CooldownSeconds int
	// RawAliases carries the legacy alias payload as stored; its shape varies
	// and is normalized once at load by the ping helper.
	RawAliases json.RawMessage
	Pings      []Ping
}

type Ping struct {
	Value      string
	Name       string
	RoleID     string
	LastUsedAt time.Time
}
