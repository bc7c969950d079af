package models

// ContentItem is one piece of content eligible to be announced: an
// identifier and the summary text produced upstream. This subsystem
// never generates summaries; items without one never appear here.
type ContentItem struct {
	ID      int64  `db:"id" json:"id"`
	Summary string `db:"summary" json:"summary"`
}
