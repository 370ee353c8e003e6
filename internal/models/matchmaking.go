package models

import "github.com/google/uuid"

// QueueEntry is one player waiting for an auto-matched opponent, stored at
// queue/{subject}/{entryId}. Pairing consumes the entry inside the same
// transaction that inspects it.
type QueueEntry struct {
	PlayerID   uuid.UUID `json:"playerId"`
	EnqueuedAt int64     `json:"enqueuedAt"` // unix millis
}

// RoomEntry is an open private room awaiting its joiner, stored at
// rooms/{code}. One room maps to at most one pending match.
type RoomEntry struct {
	Code    string    `json:"code"`
	Host    uuid.UUID `json:"host"`
	Subject Subject   `json:"subject"`
	Created int64     `json:"created"` // unix millis
}
