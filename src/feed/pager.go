package feed

import (
	"context"
	"sync"
	"time"

	"tradedeck/src/model"
)

// Cursor is the composite page bound over the append-only session log.
// Ordering is (timestamp DESC, id DESC); the cursor is exclusive, so two
// sessions sharing a timestamp are neither skipped nor duplicated across
// pages.
type Cursor struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
}

// SessionQuery is what the pager asks a fetcher for. Limit is the literal
// row count to return; the pager itself over-fetches by one to detect
// further pages.
type SessionQuery struct {
	Cursor   *Cursor
	Decision string
	Limit    int
}

// SessionFetcher is implemented by both the provider REST client and the
// gorm repository.
type SessionFetcher interface {
	FetchSessions(ctx context.Context, query SessionQuery) ([]model.CouncilSession, error)
}

const DefaultPageSize = 20

// Pager reads the council decision log page by page and merges realtime
// inserts at the head of the held list.
type Pager struct {
	fetcher  SessionFetcher
	pageSize int

	mu       sync.Mutex
	items    []model.CouncilSession
	cursor   *Cursor
	hasMore  bool
	decision string
}

func NewPager(fetcher SessionFetcher, pageSize int) *Pager {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Pager{fetcher: fetcher, pageSize: pageSize}
}

// LoadFirst discards any held state and fetches page one.
func (p *Pager) LoadFirst(ctx context.Context) error {
	p.mu.Lock()
	decision := p.decision
	p.mu.Unlock()

	sessions, err := p.fetcher.FetchSessions(ctx, SessionQuery{
		Decision: decision,
		Limit:    p.pageSize + 1,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decision != decision {
		// Filter changed while the fetch was in flight; a newer load
		// owns the list now.
		return nil
	}
	p.items, p.cursor, p.hasMore = p.trim(sessions)
	return nil
}

// LoadMore fetches the next page below the current cursor and appends it.
// A no-op when the feed is exhausted.
func (p *Pager) LoadMore(ctx context.Context) error {
	p.mu.Lock()
	if !p.hasMore || p.cursor == nil {
		p.mu.Unlock()
		return nil
	}
	cursor := *p.cursor
	decision := p.decision
	p.mu.Unlock()

	sessions, err := p.fetcher.FetchSessions(ctx, SessionQuery{
		Cursor:   &cursor,
		Decision: decision,
		Limit:    p.pageSize + 1,
	})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.decision != decision || p.cursor == nil || *p.cursor != cursor {
		return nil
	}
	page, next, more := p.trim(sessions)
	p.items = append(p.items, page...)
	p.cursor, p.hasMore = next, more
	return nil
}

// SetFilter switches the active decision filter. The held list and cursor
// are discarded and page one is refetched from scratch; no partial
// re-filtering of already-loaded items is attempted.
func (p *Pager) SetFilter(ctx context.Context, decision string) error {
	p.mu.Lock()
	p.decision = decision
	p.items = nil
	p.cursor = nil
	p.hasMore = false
	p.mu.Unlock()

	return p.LoadFirst(ctx)
}

// ApplyInsert merges a realtime session into the head of the held list.
// The session is prepended only if it is not already present by id and it
// satisfies the decision filter active right now, not the one active when
// the subscription began.
func (p *Pager) ApplyInsert(session model.CouncilSession) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.decision != "" && session.FinalDecision != p.decision {
		return false
	}
	for i := range p.items {
		if p.items[i].ID == session.ID {
			return false
		}
	}

	p.items = append([]model.CouncilSession{session}, p.items...)
	return true
}

// Items returns a copy of the held list, newest first.
func (p *Pager) Items() []model.CouncilSession {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.CouncilSession, len(p.items))
	copy(out, p.items)
	return out
}

func (p *Pager) HasMore() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hasMore
}

func (p *Pager) Filter() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.decision
}

// trim applies the over-fetch-by-one convention: hasMore when the fetcher
// returned more rows than the page size, and the cursor points at the last
// row actually kept.
func (p *Pager) trim(sessions []model.CouncilSession) ([]model.CouncilSession, *Cursor, bool) {
	hasMore := len(sessions) > p.pageSize
	if hasMore {
		sessions = sessions[:p.pageSize]
	}
	if len(sessions) == 0 {
		return nil, nil, false
	}
	last := sessions[len(sessions)-1]
	return sessions, &Cursor{Timestamp: last.Timestamp, ID: last.ID}, hasMore
}
