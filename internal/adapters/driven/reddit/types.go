package reddit

import "encoding/json"

// Reddit "thing" kinds.
const (
	kindComment = "t1"
	kindPost    = "t3"
)

type listing struct {
	Kind string `json:"kind"`
	Data struct {
		Children []thing `json:"children"`
	} `json:"data"`
}

type thing struct {
	Kind string    `json:"kind"`
	Data thingData `json:"data"`
}

type thingData struct {
	Title     string `json:"title"`
	Selftext  string `json:"selftext"`
	Body      string `json:"body"`
	Score     int    `json:"score"`
	Subreddit string `json:"subreddit"`
	Permalink string `json:"permalink"`

	// Replies is "" for leaf comments and a listing otherwise
	Replies json.RawMessage `json:"replies"`
}

func (d *thingData) replies() *listing {
	if len(d.Replies) == 0 || d.Replies[0] != '{' {
		return nil
	}
	var l listing
	if err := json.Unmarshal(d.Replies, &l); err != nil {
		return nil
	}
	return &l
}
