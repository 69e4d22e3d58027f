package model

import (
	"fmt"
	"time"
)

// Client represents a person receiving services. Structurally distinct from
// the other kinds but handled uniformly by the sync layer.
type Client struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	Name   string `json:"name"`
	Status string `json:"status"` // active, archived
	Notes  string `json:"notes,omitempty"`

	DateOfBirth *time.Time `json:"date_of_birth,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Client has valid field values.
func (c *Client) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if c.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Status == "" {
		return fmt.Errorf("status is required")
	}
	if c.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if c.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// Program represents a program run for a client.
type Program struct {
	ID       string `json:"id"`
	ClientID string `json:"client_id"`
	UserID   string `json:"user_id"`

	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status"` // active, mastered, on_hold, archived

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Program has valid field values.
func (p *Program) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("id is required")
	}
	if p.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	if p.Status == "" {
		return fmt.Errorf("status is required")
	}
	if p.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if p.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// Session represents one recorded session for a program.
type Session struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	ClientID  string `json:"client_id"`
	UserID    string `json:"user_id"`

	Date            time.Time `json:"date"`
	DurationMinutes int       `json:"duration_minutes"`
	CorrectCount    int       `json:"correct_count"`
	PromptedCount   int       `json:"prompted_count"`
	IncorrectCount  int       `json:"incorrect_count"`
	Notes           string    `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Session has valid field values.
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	if s.ProgramID == "" {
		return fmt.Errorf("program_id is required")
	}
	if s.ClientID == "" {
		return fmt.Errorf("client_id is required")
	}
	if s.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if s.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if s.DurationMinutes < 0 {
		return fmt.Errorf("duration_minutes must not be negative (got %d)", s.DurationMinutes)
	}
	if s.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if s.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}

// Stimulus represents a stimulus attached to a program.
type Stimulus struct {
	ID        string `json:"id"`
	ProgramID string `json:"program_id"`
	UserID    string `json:"user_id"`

	Label    string `json:"label"`
	Position int    `json:"position"`
	Status   string `json:"status"` // active, mastered, retired

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Validate checks if the Stimulus has valid field values.
func (st *Stimulus) Validate() error {
	if st.ID == "" {
		return fmt.Errorf("id is required")
	}
	if st.ProgramID == "" {
		return fmt.Errorf("program_id is required")
	}
	if st.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if st.Label == "" {
		return fmt.Errorf("label is required")
	}
	if st.Status == "" {
		return fmt.Errorf("status is required")
	}
	if st.CreatedAt.IsZero() {
		return fmt.Errorf("created_at is required")
	}
	if st.UpdatedAt.IsZero() {
		return fmt.Errorf("updated_at is required")
	}
	return nil
}
