package models

// Job represents a game analysis job. Exactly one of PGN, FEN or Moves
// describes the game; Moves are UCI moves played from FEN (or the standard
// start position when FEN is empty).
type Job struct {
	ID       string   `json:"id"`
	PGN      string   `json:"pgn,omitempty"`
	FEN      string   `json:"fen,omitempty"`
	Moves    []string `json:"moves,omitempty"`
	Engine   string   `json:"engine,omitempty"`
	Depth    int      `json:"depth"`
	TimeMS   int      `json:"time_ms"`
	MultiPV  int      `json:"multipv,omitempty"`
	Priority int      `json:"priority"`
}
