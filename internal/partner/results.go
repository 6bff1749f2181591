package partner

import (
	"errors"

	"github.com/goharguide/partnerbot/internal/repository"
)

// ErrDuplicateSession is returned when a session is created under a channel
// ID that is already registered.
var ErrDuplicateSession = errors.New("session already exists for channel")

type PairingStatus string

const (
	// PairingStatusQueued: nobody was waiting; the requester joined the queue.
	PairingStatusQueued PairingStatus = "QUEUED"
	// PairingStatusWithdrawn: the requester was already queued and was removed.
	PairingStatusWithdrawn PairingStatus = "WITHDRAWN"
	// PairingStatusAlreadyActive: the requester is a member of an active session.
	PairingStatusAlreadyActive PairingStatus = "ALREADY_ACTIVE"
	// PairingStatusPaired: a waiting participant was matched and a session created.
	PairingStatusPaired PairingStatus = "PAIRED"
)

type PairingResult struct {
	Status  PairingStatus
	Session *repository.Session
}

type CloseStatus string

const (
	CloseStatusClosed       CloseStatus = "CLOSED"
	CloseStatusNotFound     CloseStatus = "NOT_FOUND"
	CloseStatusUnauthorized CloseStatus = "UNAUTHORIZED"
)

type CloseResult struct {
	Status CloseStatus
}

type CloseRequest struct {
	GuildID     string
	ChannelID   string
	RequesterID string
	Reason      string
}

const (
	closeReasonManual            = "manual"
	closeReasonInactivity        = "auto-closed: inactivity"
	closeReasonOrphanedOnRestart = "orphaned-on-restart"
	closeReasonOrphanedChannel   = "orphaned: channel deleted externally"
)
