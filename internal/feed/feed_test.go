package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/vietddude/hivekit/internal/core/domain"
	"github.com/vietddude/hivekit/internal/infra/chain/hive"
)

// mockFetcher serves a fixed feed of total posts in pages.
type mockFetcher struct {
	mu      sync.Mutex
	total   int
	queries []hive.RankedPostsQuery
	err     error
}

func (m *mockFetcher) GetRankedPosts(ctx context.Context, q hive.RankedPostsQuery) ([]domain.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, q)
	if m.err != nil {
		return nil, m.err
	}

	start := 0
	if q.StartAuthor != "" {
		fmt.Sscanf(q.StartPermlink, "post-%d", &start)
		start++
	}
	var posts []domain.Post
	for i := start; i < m.total && len(posts) < q.Limit; i++ {
		posts = append(posts, domain.Post{
			Author:   fmt.Sprintf("author%d", i%3),
			Permlink: fmt.Sprintf("post-%d", i),
		})
	}
	return posts, nil
}

func (m *mockFetcher) setErr(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *mockFetcher) lastQuery() hive.RankedPostsQuery {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queries[len(m.queries)-1]
}

func TestFetchPage_FullPageHasNextCursor(t *testing.T) {
	f := &mockFetcher{total: 100}

	page, err := FetchPage(context.Background(), f, SortTrending, "", nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Posts) != 20 {
		t.Fatalf("expected 20 posts, got %d", len(page.Posts))
	}
	if page.NextCursor == nil {
		t.Fatal("expected next cursor")
	}
	last := page.Posts[19]
	if page.NextCursor.Author != last.Author || page.NextCursor.Permlink != last.Permlink {
		t.Errorf("expected cursor at post #20, got %+v", page.NextCursor)
	}

	q := f.lastQuery()
	if q.StartAuthor != "" || q.StartPermlink != "" || q.Tag != "" {
		t.Errorf("first page should not send a cursor or tag: %+v", q)
	}
}

func TestFetchPage_ShortPageEndsFeed(t *testing.T) {
	f := &mockFetcher{total: 7}

	page, err := FetchPage(context.Background(), f, SortTrending, "", nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Posts) != 7 {
		t.Fatalf("expected 7 posts, got %d", len(page.Posts))
	}
	if page.NextCursor != nil {
		t.Errorf("expected no next cursor, got %+v", page.NextCursor)
	}
}

func TestFetchPage_EmptyFeed(t *testing.T) {
	page, err := FetchPage(context.Background(), &mockFetcher{}, SortCreated, "hive-1", nil, 20)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(page.Posts) != 0 || page.NextCursor != nil {
		t.Errorf("expected empty terminal page, got %+v", page)
	}
}

func TestFetchPage_PartialCursorIsFirstPage(t *testing.T) {
	f := &mockFetcher{total: 30}
	_, err := FetchPage(context.Background(), f, SortHot, "", &domain.PaginationCursor{Author: "author1"}, 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q := f.lastQuery(); q.StartAuthor != "" {
		t.Errorf("expected first page query, got %+v", q)
	}
}

func TestFetchPage_Validation(t *testing.T) {
	f := &mockFetcher{total: 50}

	if _, err := FetchPage(context.Background(), f, Sort("best"), "", nil, 20); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("expected ErrInvalidSort, got %v", err)
	}

	tests := []struct {
		in, want int
	}{
		{0, 20},
		{-5, 20},
		{1, 1},
		{20, 20},
		{100, 20},
	}
	for _, tt := range tests {
		if _, err := FetchPage(context.Background(), f, SortCreated, "", nil, tt.in); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := f.lastQuery().Limit; got != tt.want {
			t.Errorf("limit %d: sent %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFetchPage_ErrorWrapped(t *testing.T) {
	boom := errors.New("boom")
	f := &mockFetcher{err: boom}
	if _, err := FetchPage(context.Background(), f, SortTrending, "", nil, 20); !errors.Is(err, boom) {
		t.Errorf("expected wrapped error, got %v", err)
	}
}

func TestParseSort(t *testing.T) {
	if s, err := ParseSort("payout_comments"); err != nil || s != SortPayoutComments {
		t.Errorf("unexpected result %q %v", s, err)
	}
	if _, err := ParseSort("Trending"); !errors.Is(err, ErrInvalidSort) {
		t.Errorf("expected ErrInvalidSort, got %v", err)
	}
}
