package models

// Result is the analysis of one position of a job's game.
type Result struct {
	JobID          string         `json:"job_id"`
	Index          int            `json:"index"`
	FEN            string         `json:"fen"`
	Move           string         `json:"move,omitempty"` // move that led here, UCI
	SAN            string         `json:"san,omitempty"`
	BestMove       string         `json:"best_move,omitempty"`
	Eval           *Score         `json:"eval,omitempty"` // White's point of view
	Depth          int            `json:"depth,omitempty"`
	PV             []string       `json:"pv,omitempty"`
	Classification Classification `json:"classification"`
	Error          string         `json:"error,omitempty"`
}
