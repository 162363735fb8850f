package usecase

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
)

const (
	// DefaultPageSize is used when a request does not specify a limit.
	DefaultPageSize = 50
	// MaxPageSize caps a single history page.
	MaxPageSize = 100

	// The source only exposes "fetch the most recent K"; paging before a
	// cursor therefore overfetches and locates the cursor by identity.
	initialOverfetch = 500
	retryOverfetch   = 1000
)

// PageCursor is the input to a history page request. Not stored; recomputed
// per request.
type PageCursor struct {
	BeforeMessageID string
	PageSize        int
}

// HistoryPager reconstructs stable, gap-free, chronologically ordered windows
// of history from a source that only supports "fetch the most recent K" with
// no order guarantee.
type HistoryPager struct {
	client     repo.ClientRepo
	normalizer *Normalizer
	archive    repo.ArchiveRepo // optional, best-effort record of paged history
	log        zerolog.Logger
}

// NewHistoryPager creates a pager. archive may be nil.
func NewHistoryPager(client repo.ClientRepo, normalizer *Normalizer, archive repo.ArchiveRepo, log zerolog.Logger) *HistoryPager {
	return &HistoryPager{
		client:     client,
		normalizer: normalizer,
		archive:    archive,
		log:        log.With().Str("component", "pager").Logger(),
	}
}

// FetchPage returns up to cursor.PageSize messages strictly older than
// cursor.BeforeMessageID, oldest-first. An empty cursor id means "the latest
// page". An empty result means no older messages exist; it is a terminal
// condition for incremental loading, not an error.
func (p *HistoryPager) FetchPage(ctx context.Context, chatID string, cursor PageCursor) ([]domain.Message, error) {
	size := clampPageSize(cursor.PageSize)

	if cursor.BeforeMessageID == "" {
		batch, err := p.fetchBatch(ctx, chatID, size)
		if err != nil {
			return nil, err
		}
		page := orientOldestFirst(batch)
		p.record(ctx, page)
		return page, nil
	}

	batch, err := p.fetchBatch(ctx, chatID, initialOverfetch)
	if err != nil {
		return nil, err
	}

	window, needMore := olderWindow(batch, cursor.BeforeMessageID, size)

	// A short batch already contains the chat's entire remaining history, so
	// the window is authoritative. A full batch that could not produce a full
	// window may just not reach far enough back: retry exactly once with a
	// larger overfetch before concluding the history is exhausted.
	if needMore && len(batch) >= initialOverfetch {
		p.log.Debug().Str("chat", chatID).Str("before", cursor.BeforeMessageID).Msg("cursor near batch edge, retrying with larger overfetch")
		batch, err = p.fetchBatch(ctx, chatID, retryOverfetch)
		if err != nil {
			return nil, err
		}
		window, _ = olderWindow(batch, cursor.BeforeMessageID, size)
	}

	p.record(ctx, window)
	return window, nil
}

func (p *HistoryPager) fetchBatch(ctx context.Context, chatID string, limit int) ([]domain.Message, error) {
	raws, err := p.client.FetchMessages(ctx, chatID, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}
	return p.normalizer.NormalizeHistory(ctx, raws), nil
}

func (p *HistoryPager) record(ctx context.Context, msgs []domain.Message) {
	if p.archive == nil {
		return
	}
	for i := range msgs {
		if err := p.archive.RecordMessage(ctx, &msgs[i]); err != nil {
			p.log.Warn().Err(err).Str("msg", msgs[i].ID).Msg("archive record failed")
			return
		}
	}
}

// olderWindow is the pure locate-and-slice step over an immutable snapshot of
// fetched messages. It returns up to size messages strictly older than
// beforeID, oldest-first, plus needMore: true when this batch cannot prove
// the window is complete (cursor missing, or the older side of the cursor
// ran into the batch edge before filling the window).
func olderWindow(batch []domain.Message, beforeID string, size int) ([]domain.Message, bool) {
	idx := -1
	for i := range batch {
		if batch[i].ID == beforeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		// Cursor not in the batch. Either history before it was exhausted or
		// the batch was too small to contain it; the caller retries once with
		// a larger window before declaring end-of-history.
		return []domain.Message{}, true
	}

	// The source's ordering is observed to be inconsistent, so derive the
	// batch's chronological direction empirically.
	newestFirst := len(batch) >= 2 && batch[0].TimestampSec > batch[len(batch)-1].TimestampSec

	var window []domain.Message
	var hitEdge bool
	if newestFirst {
		// Older entries sit after the cursor index.
		end := idx + 1 + size
		if end >= len(batch) {
			end = len(batch)
			hitEdge = true
		}
		window = reverseCopy(batch[idx+1 : end])
	} else {
		// Oldest-first: older entries sit before the cursor index.
		start := idx - size
		if start <= 0 {
			start = 0
			hitEdge = true
		}
		window = append([]domain.Message(nil), batch[start:idx]...)
	}

	return window, hitEdge && len(window) < size
}

// orientOldestFirst re-orders a fetched batch to ascending chronological
// order, deriving the batch direction from its edge timestamps.
func orientOldestFirst(batch []domain.Message) []domain.Message {
	if len(batch) >= 2 && batch[0].TimestampSec > batch[len(batch)-1].TimestampSec {
		return reverseCopy(batch)
	}
	return append([]domain.Message(nil), batch...)
}

func reverseCopy(msgs []domain.Message) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i := range msgs {
		out[len(msgs)-1-i] = msgs[i]
	}
	return out
}

func clampPageSize(size int) int {
	if size <= 0 {
		return DefaultPageSize
	}
	if size > MaxPageSize {
		return MaxPageSize
	}
	return size
}
