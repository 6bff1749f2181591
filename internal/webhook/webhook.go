package webhook

import "context"

const SessionLogSchemaVersion = "2026-08-01"

type SessionLogPayload struct {
	SchemaVersion string   `json:"schema_version"`
	ChannelID     string   `json:"channel_id"`
	ChannelName   string   `json:"channel_name"`
	Members       []string `json:"members"`
	CreatedAt     string   `json:"created_at"`
	ClosedAt      string   `json:"closed_at"`
	Reason        string   `json:"reason"`
	MessageCount  int      `json:"message_count"`
	Transcript    string   `json:"transcript"`
}

type Sender interface {
	SendSessionLog(ctx context.Context, payload SessionLogPayload) error
}
