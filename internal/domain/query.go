package domain

// Query is one incoming user question. Ephemeral: it lives in memory from
// arrival until it is answered or ticketed, and is lost on restart.
type Query struct {
	Text      string
	Channel   string
	ThreadRef string
	UserID    string

	// Vector is computed lazily during resolution, never on arrival.
	Vector []float32
}

// MatchResult is the outcome of one similarity scan. Computed fresh per
// query, never cached.
type MatchResult struct {
	Matched  bool
	Document *Document
	Score    float64
}
