package models

import "time"

// Session is the per-browser context carried through one interactive flow.
// The credential lives only here, in memory.
type Session struct {
	ID           string    `json:"id"`
	Credential   string    `json:"-"`
	CSRFToken    string    `json:"-"`
	FileName     string    `json:"file_name"`
	Table        *Table    `json:"-"`
	LastQuestion string    `json:"last_question"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (s *Session) HasCredential() bool {
	return s != nil && s.Credential != ""
}

func (s *Session) HasTable() bool {
	return s != nil && s.Table != nil
}
