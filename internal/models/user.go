package models

import "github.com/google/uuid"

type User struct {
	ID       uuid.UUID `json:"id"`
	Email    string    `json:"email"`
	Password string    `json:"password,omitempty"`
	Name     string    `json:"name"`
	Avatar   string    `json:"avatar"`

	IsEphemeral bool `json:"is_ephemeral"`
	IsAdmin     bool `json:"is_admin"`

	// Points is the durable balance credited by the ledger at match end.
	Points int `json:"points"`
}

// ProfileDoc is the live mirror of a user kept in the shared state store at
// users/{uid}. Clients subscribe to it to learn about their active match; the
// durable point balance lives in Postgres and is only cached here.
type ProfileDoc struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Avatar      string     `json:"avatar"`
	Points      int        `json:"points"`
	ActiveMatch *uuid.UUID `json:"activeMatch,omitempty"`
}
