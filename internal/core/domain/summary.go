package domain

// CategorySummary aggregates one category over the recorded history.
type CategorySummary struct {
	Category string  `json:"category"`
	Total    int     `json:"total"`
	Mean     float64 `json:"mean"`
	Median   float64 `json:"median"`
	Max      int     `json:"max"`
}

// Summary aggregates the whole table.
type Summary struct {
	Days           int               `json:"days"`
	FirstDate      string            `json:"firstDate,omitempty"`
	LastDate       string            `json:"lastDate,omitempty"`
	DuplicateDates []string          `json:"duplicateDates"`
	Categories     []CategorySummary `json:"categories"`
}
