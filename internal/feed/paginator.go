package feed

import (
	"context"
	"log/slog"
	"sync"

	"github.com/vietddude/hivekit/internal/core/domain"
)

// Source resolves the fetcher to use for the next request, typically from
// the chain handle currently published by the store.
type Source func() (Fetcher, error)

// StaticSource always returns f.
func StaticSource(f Fetcher) Source {
	return func() (Fetcher, error) { return f, nil }
}

// Paginator keeps the navigation state of one feed view.
//
// Next pushes the current cursor onto the history and Prev pops it, so a
// Next followed by a Prev returns to the same cursor and page number.
// State only changes when a fetch succeeds. Results of fetches started
// before Reset or Close, or before another navigation committed, are
// dropped with ErrStale or ErrClosed.
type Paginator struct {
	mu sync.Mutex

	source Source
	sort   Sort
	tag    string
	limit  int

	session    domain.PaginationSession
	page       domain.RankedPostPage
	loaded     bool
	generation uint64
	closed     bool

	log *slog.Logger
}

// NewPaginator creates a paginator for sort and tag. Nothing is fetched until Load.
func NewPaginator(source Source, sort Sort, tag string, limit int) (*Paginator, error) {
	if !validSorts[sort] {
		return nil, ErrInvalidSort
	}
	return &Paginator{
		source: source,
		sort:   sort,
		tag:    tag,
		limit:  NormalizeLimit(limit),
		log:    slog.Default().With("component", "feed", "sort", string(sort)),
	}, nil
}

// Load fetches the page at the current cursor.
func (p *Paginator) Load(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	cursor := p.session.CurrentCursor
	p.mu.Unlock()

	return p.navigate(ctx, cursor, func(s *domain.PaginationSession) {})
}

// Next moves to the following page. It is a no-op when there is none.
func (p *Paginator) Next(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	next := p.page.NextCursor
	current := p.session.CurrentCursor
	p.mu.Unlock()

	if next == nil {
		return nil
	}
	return p.navigate(ctx, next, func(s *domain.PaginationSession) {
		s.History = append(s.History, current)
	})
}

// Prev moves back one page. It is a no-op on the first page.
func (p *Paginator) Prev(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return ErrClosed
	}
	if len(p.session.History) == 0 {
		p.mu.Unlock()
		return nil
	}
	prev := p.session.History[len(p.session.History)-1]
	p.mu.Unlock()

	return p.navigate(ctx, prev, func(s *domain.PaginationSession) {
		s.History = s.History[:len(s.History)-1]
	})
}

// navigate fetches the page at cursor and, if nothing changed meanwhile,
// commits it with update applied to the session.
func (p *Paginator) navigate(
	ctx context.Context,
	cursor *domain.PaginationCursor,
	update func(*domain.PaginationSession),
) error {
	p.mu.Lock()
	gen := p.generation
	sort, tag, limit := p.sort, p.tag, p.limit
	p.mu.Unlock()

	fetcher, err := p.source()
	if err != nil {
		return err
	}

	page, err := FetchPage(ctx, fetcher, sort, tag, cursor, limit)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.generation != gen {
		p.log.Debug("Dropping stale page", "cursor", cursor)
		return ErrStale
	}
	if err != nil {
		p.log.Warn("Failed to fetch page", "page", len(p.session.History)+1, "error", err)
		return err
	}

	p.generation++
	update(&p.session)
	p.session.CurrentCursor = cursor
	p.page = page
	p.loaded = true
	return nil
}

// HasNext reports whether Next would move.
func (p *Paginator) HasNext() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && p.page.NextCursor != nil
}

// HasPrev reports whether Prev would move.
func (p *Paginator) HasPrev() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.closed && len(p.session.History) > 0
}

// CurrentPage returns the loaded page and whether one has been loaded.
func (p *Paginator) CurrentPage() (domain.RankedPostPage, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	page := domain.RankedPostPage{
		Posts:      append([]domain.Post(nil), p.page.Posts...),
		NextCursor: copyCursor(p.page.NextCursor),
	}
	return page, p.loaded
}

// PageNumber returns the 1-based index of the current page.
func (p *Paginator) PageNumber() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.session.History) + 1
}

// Session returns a copy of the navigation state.
func (p *Paginator) Session() domain.PaginationSession {
	p.mu.Lock()
	defer p.mu.Unlock()

	history := make([]*domain.PaginationCursor, len(p.session.History))
	for i, c := range p.session.History {
		history[i] = copyCursor(c)
	}
	return domain.PaginationSession{
		CurrentCursor: copyCursor(p.session.CurrentCursor),
		History:       history,
	}
}

// Reset switches to sort and tag and returns to an empty first page.
// Call Load to fetch it.
func (p *Paginator) Reset(sort Sort, tag string) error {
	if !validSorts[sort] {
		return ErrInvalidSort
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrClosed
	}

	p.sort = sort
	p.tag = tag
	p.session = domain.PaginationSession{}
	p.page = domain.RankedPostPage{}
	p.loaded = false
	p.generation++
	p.log = slog.Default().With("component", "feed", "sort", string(sort))
	return nil
}

// Close discards in-flight results and rejects further navigation.
func (p *Paginator) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.generation++
}

func copyCursor(c *domain.PaginationCursor) *domain.PaginationCursor {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}
