package domain

import "time"

// Post is the subset of a ranked feed entry the core relies on.
type Post struct {
	Author      string    `json:"author"`
	Permlink    string    `json:"permlink"`
	Title       string    `json:"title"`
	Category    string    `json:"category"`
	Created     time.Time `json:"created"`
	PayoutValue string    `json:"payout_value"`
	Children    int       `json:"children"`
	NetVotes    int       `json:"net_votes"`
	URL         string    `json:"url"`
}

// PaginationCursor is the continuation token for a feed query.
// A nil cursor denotes the first page.
type PaginationCursor struct {
	Author   string `json:"author"`
	Permlink string `json:"permlink"`
}

// CursorOf returns the cursor that continues after p.
func CursorOf(p Post) *PaginationCursor {
	return &PaginationCursor{Author: p.Author, Permlink: p.Permlink}
}

// RankedPostPage is one page of a ranked feed.
type RankedPostPage struct {
	Posts      []Post            `json:"posts"`
	NextCursor *PaginationCursor `json:"next_cursor"`
}

// PaginationSession is the navigation state of one feed view.
type PaginationSession struct {
	CurrentCursor *PaginationCursor
	History       []*PaginationCursor
}
