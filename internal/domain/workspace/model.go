package workspace

import "time"

// Workspace is a coordination scope: one lock and at most one live session
// exist per workspace at any time.
type Workspace struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RootPath  string    `json:"root_path,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary is a lightweight representation for listing.
type Summary struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	SessionCount      int       `json:"session_count"`
	FinalizedSessions int       `json:"finalized_sessions"`
	CreatedAt         time.Time `json:"created_at"`
}
