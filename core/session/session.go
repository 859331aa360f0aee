// Package session keeps isolated assignment state per client session and
// applies instructions to it one run at a time.
package session

import (
	"errors"
	"time"

	"github.com/kilianp07/fieldassign/core/model"
	"github.com/kilianp07/fieldassign/core/result"
)

var (
	// ErrNotFound is returned for unknown session IDs.
	ErrNotFound = errors.New("session not found")
	// ErrEmptyInstruction is returned when an instruction has no text.
	ErrEmptyInstruction = errors.New("empty instruction")
	// ErrUnknownPreset is returned for preset names without a mapping.
	ErrUnknownPreset = errors.New("unknown preset")
)

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// WelcomeMessage opens the history of every new or reset session.
const WelcomeMessage = "Showing the current assignment. Send an instruction such as \"prioritise the novice\" or \"trouble reported\" to recalculate."

// Message is one entry of the chat history.
type Message struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	Time time.Time `json:"time"`
}

// Session is a snapshot of one client's state.
type Session struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	Runs      int          `json:"runs"`
	Sites     []model.Site `json:"sites"`
	Messages  []Message    `json:"messages"`
}

// RunEvent is published on the event bus after every applied instruction.
type RunEvent struct {
	RunID       string
	SessionID   string
	Instruction string
	Rule        model.InstructionKind
	Table       result.Table
	Summary     string
	Time        time.Time
}

// Outcome is returned by Apply.
type Outcome struct {
	RunID   string                `json:"run_id"`
	Rule    model.InstructionKind `json:"rule"`
	Table   result.Table          `json:"table"`
	Stats   result.Stats          `json:"stats"`
	Summary string                `json:"summary"`
}

func (s Session) clone() Session {
	c := s
	c.Sites = model.CloneSites(s.Sites)
	c.Messages = append([]Message(nil), s.Messages...)
	return c
}
