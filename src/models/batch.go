package models

// Batch collects the per-position results of one job as they arrive.
type Batch struct {
	ID        string             `json:"id"`
	JobID     string             `json:"job_id"`
	Engine    string             `json:"engine,omitempty"`
	Results   []Result           `json:"results"`
	Completed int                `json:"completed"`
	Total     int                `json:"total"`
	Done      bool               `json:"done"`
	Opening   string             `json:"opening,omitempty"`
	Accuracy  map[string]float64 `json:"accuracy,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// Completion closes a job's batch once every position has been reported.
type Completion struct {
	JobID    string             `json:"job_id"`
	Engine   string             `json:"engine,omitempty"`
	Opening  string             `json:"opening,omitempty"`
	Accuracy map[string]float64 `json:"accuracy,omitempty"`
	Error    string             `json:"error,omitempty"`
}
