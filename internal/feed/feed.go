// Package feed pages through ranked post feeds with cursor navigation.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/infra/chain/hive"
	"github.com/vietddude/hivekit/internal/metrics"
)

var (
	// ErrInvalidSort is returned for sort orders the bridge API does not know.
	ErrInvalidSort = errors.New("invalid sort")
	// ErrClosed is returned once the paginator has been closed.
	ErrClosed = errors.New("paginator closed")
	// ErrStale is returned when a page arrives after the view it was requested for changed.
	ErrStale = errors.New("page request superseded")
)

const (
	// MaxLimit is the largest page the bridge API serves.
	MaxLimit = 20
	// DefaultLimit is used when no limit is given.
	DefaultLimit = MaxLimit
)

// Sort is a ranked feed order.
type Sort string

const (
	SortTrending       Sort = "trending"
	SortHot            Sort = "hot"
	SortCreated        Sort = "created"
	SortPromoted       Sort = "promoted"
	SortPayout         Sort = "payout"
	SortPayoutComments Sort = "payout_comments"
	SortMuted          Sort = "muted"
)

var validSorts = map[Sort]bool{
	SortTrending:       true,
	SortHot:            true,
	SortCreated:        true,
	SortPromoted:       true,
	SortPayout:         true,
	SortPayoutComments: true,
	SortMuted:          true,
}

// ParseSort validates s.
func ParseSort(s string) (Sort, error) {
	sort := Sort(s)
	if !validSorts[sort] {
		return "", fmt.Errorf("%w: %q", ErrInvalidSort, s)
	}
	return sort, nil
}

// Fetcher runs the ranked posts query. *hive.Client implements it.
type Fetcher interface {
	GetRankedPosts(ctx context.Context, q hive.RankedPostsQuery) ([]domain.Post, error)
}

// NormalizeLimit clamps limit to [1, MaxLimit]. Non-positive values select DefaultLimit.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// FetchPage fetches the page starting after cursor. A nil cursor, or one
// missing either field, requests the first page.
//
// NextCursor is set when the page is full (len(posts) == limit); the bridge
// API has no other end-of-feed signal, so a full final page yields one
// extra empty page.
func FetchPage(
	ctx context.Context,
	fetcher Fetcher,
	sort Sort,
	tag string,
	cursor *domain.PaginationCursor,
	limit int,
) (domain.RankedPostPage, error) {
	if !validSorts[sort] {
		return domain.RankedPostPage{}, fmt.Errorf("%w: %q", ErrInvalidSort, sort)
	}
	limit = NormalizeLimit(limit)

	q := hive.RankedPostsQuery{
		Sort:  string(sort),
		Tag:   tag,
		Limit: limit,
	}
	if cursor != nil && cursor.Author != "" && cursor.Permlink != "" {
		q.StartAuthor = cursor.Author
		q.StartPermlink = cursor.Permlink
	}

	posts, err := fetcher.GetRankedPosts(ctx, q)
	if err != nil {
		metrics.FeedPagesTotal.WithLabelValues(string(sort), "error").Inc()
		return domain.RankedPostPage{}, fmt.Errorf("fetch %s page: %w", sort, err)
	}
	metrics.FeedPagesTotal.WithLabelValues(string(sort), "ok").Inc()

	page := domain.RankedPostPage{Posts: posts}
	if len(posts) > 0 && len(posts) >= limit {
		page.NextCursor = domain.CursorOf(posts[len(posts)-1])
	}
	return page, nil
}
