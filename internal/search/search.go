package search

// Result is a single post hit returned to the caller.
type Result struct {
	ID           string `json:"id"`
	DiscussionID string `json:"discussionId"`
	Title        string `json:"title"`
	Snippet      string `json:"snippet"`
	PostType     string `json:"postType"`
	IsArchived   bool   `json:"isArchived"`
}

// Query describes a search request over a discussion's posts.
type Query struct {
	Text            string
	DiscussionID    string // empty = all discussions visible to the caller
	PostType        string // empty = all types
	IncludeArchived bool
	Limit           int
	Offset          int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// PostRecord is the data we index for a post.
type PostRecord struct {
	ID           string `json:"id"`
	DiscussionID string `json:"discussionId"`
	Title        string `json:"title"`
	Content      string `json:"content"`
	PostType     string `json:"postType"`
	IsArchived   bool   `json:"isArchived"`
}
