package domain

// MovieRef is a film entry from weights.json
type MovieRef struct {
	Title   string             `json:"title"`
	Year    any                `json:"year"` // Either a number or a string in weights.json
	Weights map[string]float64 `json:"weights,omitempty"`
}

// JobRef holds the Big Five weights for a desired career and its matching film
type JobRef struct {
	Weights map[string]float64 `json:"weights"`
	Movie   MovieRef           `json:"movie"`
}

// Career is the job suitability part of a generated profile
type Career struct {
	Desired     string  `json:"desired"`
	Suitability float64 `json:"suitability"`
}

// Profile is written to profile.json and rendered by the front end.
// Movies are keyed "job" and "psych" and hold the OMDb fields (Title, Year, ...)
// plus local_poster, and suitability for the psych pick.
type Profile struct {
	Name     string                    `json:"name"`
	Career   Career                    `json:"career"`
	Movies   map[string]map[string]any `json:"movies"`
	Pets     map[string]string         `json:"pets"`
	MaxScore int                       `json:"max_score"`
}
