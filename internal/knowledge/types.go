package knowledge

import "time"

// Entry is the metadata record for one piece of knowledge. The segment
// text itself lives in the vector store; the entry only tracks what was
// stored and when.
type Entry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ContentLength int       `json:"contentLength"`
	SegmentCount  int       `json:"segmentCount"`
	SegmentIDs    []string  `json:"segmentIds"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Segment is one chunk of an entry's content, tagged with the metadata
// needed to attribute and restore it. Never mutated after creation.
type Segment struct {
	Content   string
	Source    string // owning entry id
	Title     string
	CreatedAt time.Time
}

// Match is one similarity-search hit.
type Match struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"sourceId"`
}

// Stats aggregates the in-memory metadata.
type Stats struct {
	TotalEntries    int    `json:"totalEntries"`
	TotalSegments   int    `json:"totalSegments"`
	TotalCharacters int64  `json:"totalCharacters"`
	EmbeddingModel  string `json:"embeddingModel"`
}
