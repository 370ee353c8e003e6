package models

// Subject tags a question bank. Matches are always drawn from a single subject.
type Subject string

const (
	SubjectMath    Subject = "math"
	SubjectGeneral Subject = "general"
)

// Question is static quiz content. Once drawn into a match the copy embedded
// in the match document is never mutated.
type Question struct {
	ID      string   `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
	Correct int      `json:"correct"` // index into Options, 0-3
	Subject Subject  `json:"subject"`
}
