package models

import "github.com/google/uuid"

type MatchStatus string

const (
	MatchActive   MatchStatus = "active"
	MatchFinished MatchStatus = "finished"
)

// WinnerDraw marks a finished match where both players ended on equal score.
const WinnerDraw = "draw"

// MatchPlayer is the per-player sub-state embedded in a match document.
type MatchPlayer struct {
	Name      string `json:"name"`
	Avatar    string `json:"avatar"`
	Score     int    `json:"score"`
	Connected bool   `json:"connected"`
}

// Match is the shared document both participants mutate through the engine.
// Order fixes the two-player answering order at construction time; turn
// rotation and question advancement are derived from it, never from map
// iteration order.
type Match struct {
	ID      uuid.UUID                  `json:"matchId"`
	Status  MatchStatus                `json:"status"`
	Subject Subject                    `json:"subject"`
	Order   [2]uuid.UUID               `json:"order"`
	Players map[uuid.UUID]*MatchPlayer `json:"players"`

	Turn                 uuid.UUID  `json:"turn"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	Questions            []Question `json:"questions"`

	// Winner is the winning player's id string, or WinnerDraw. Set exactly
	// when Status becomes finished.
	Winner string `json:"winner,omitempty"`

	LastActivity int64 `json:"lastActivity"` // unix millis, liveness signal only
}

// Ordinal returns 0 or 1 for a participant, -1 otherwise.
func (m *Match) Ordinal(playerID uuid.UUID) int {
	for i, id := range m.Order {
		if id == playerID {
			return i
		}
	}
	return -1
}

// Opponent returns the other participant's id.
func (m *Match) Opponent(playerID uuid.UUID) uuid.UUID {
	if m.Order[0] == playerID {
		return m.Order[1]
	}
	return m.Order[0]
}

// OnFinalQuestion reports whether the match is on its last question.
func (m *Match) OnFinalQuestion() bool {
	return m.CurrentQuestionIndex == len(m.Questions)-1
}
