package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"

	"github.com/wabridge/wabridge/internal/biz/domain"
	"github.com/wabridge/wabridge/internal/biz/repo"
)

// seedHistory fills the fake source with count messages m1..mN, oldest-first,
// one second apart.
func seedHistory(f *fakeClient, count int) {
	f.history = nil
	for i := 1; i <= count; i++ {
		f.history = append(f.history, repo.RawMessage{
			ID:           fmt.Sprintf("m%d", i),
			From:         "123@c.us",
			Body:         fmt.Sprintf("message %d", i),
			Type:         "chat",
			TimestampSec: int64(1700000000 + i),
		})
	}
}

func newTestPager(f *fakeClient) *HistoryPager {
	return NewHistoryPager(f, NewNormalizer(f, zerolog.Nop()), nil, zerolog.Nop())
}

func assertAscending(t *testing.T, msgs []domain.Message) {
	t.Helper()
	for i := 1; i < len(msgs); i++ {
		if msgs[i-1].TimestampSec >= msgs[i].TimestampSec {
			t.Fatalf("Messages not in ascending timestamp order at %d: %d >= %d", i, msgs[i-1].TimestampSec, msgs[i].TimestampSec)
		}
	}
}

func TestFetchPageNoCursorReturnsLatestOldestFirst(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 200)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{PageSize: 50})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != 50 {
		t.Fatalf("Expected 50 messages, got %d", len(page))
	}
	assertAscending(t, page)
	if page[0].ID != "m151" || page[49].ID != "m200" {
		t.Errorf("Expected m151..m200, got %s..%s", page[0].ID, page[49].ID)
	}
	if f.fetchLimits[0] != 50 {
		t.Errorf("Expected fetch of exactly pageSize, got %d", f.fetchLimits[0])
	}
}

func TestFetchPageWithCursorReturnsStrictlyOlder(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 300)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m200", PageSize: 50})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != 50 {
		t.Fatalf("Expected 50 messages, got %d", len(page))
	}
	assertAscending(t, page)
	if page[0].ID != "m150" || page[49].ID != "m199" {
		t.Errorf("Expected m150..m199, got %s..%s", page[0].ID, page[49].ID)
	}
	for _, m := range page {
		if m.TimestampSec >= int64(1700000000+200) {
			t.Errorf("Message %s is not strictly older than the cursor", m.ID)
		}
	}
}

func TestFetchPageHandlesOldestFirstSource(t *testing.T) {
	f := newFakeClient()
	f.oldestFirstFetch = true
	seedHistory(f, 300)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m200", PageSize: 50})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != 50 {
		t.Fatalf("Expected 50 messages, got %d", len(page))
	}
	assertAscending(t, page)
	if page[0].ID != "m150" || page[49].ID != "m199" {
		t.Errorf("Expected m150..m199, got %s..%s", page[0].ID, page[49].ID)
	}
}

func TestFetchPageIdempotentForFixedSnapshot(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 300)
	p := newTestPager(f)

	cursor := PageCursor{BeforeMessageID: "m250", PageSize: 20}
	first, err := p.FetchPage(context.Background(), "123@c.us", cursor)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	second, err := p.FetchPage(context.Background(), "123@c.us", cursor)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("Expected identical results, got %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Errorf("Result differs at %d: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestFetchPageCursorNotFoundYieldsEmptyPage(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 30)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "nope", PageSize: 50})
	if err != nil {
		t.Fatalf("Cursor-not-found must not be an error, got: %v", err)
	}
	if len(page) != 0 {
		t.Errorf("Expected empty page, got %d messages", len(page))
	}
}

func TestFetchPageRetriesLargerOverfetchWhenCursorMissingFromFullBatch(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 700)
	p := newTestPager(f)

	// m50 is outside the most recent 500 but inside 1000.
	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m50", PageSize: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.fetchLimits) != 2 || f.fetchLimits[0] != 500 || f.fetchLimits[1] != 1000 {
		t.Fatalf("Expected overfetch 500 then retry 1000, got %v", f.fetchLimits)
	}
	if len(page) != 10 {
		t.Fatalf("Expected 10 messages after retry, got %d", len(page))
	}
	if page[0].ID != "m40" || page[9].ID != "m49" {
		t.Errorf("Expected m40..m49, got %s..%s", page[0].ID, page[9].ID)
	}
}

func TestFetchPageRetriesWhenCursorNearBatchEdge(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 700)
	p := newTestPager(f)

	// The 500-batch holds m201..m700; only 4 strictly-older messages of m205
	// are inside it, so the pager must retry with 1000.
	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m205", PageSize: 50})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.fetchLimits) != 2 {
		t.Fatalf("Expected a single retry, got fetches %v", f.fetchLimits)
	}
	if len(page) != 50 {
		t.Fatalf("Expected full window after retry, got %d", len(page))
	}
	if page[0].ID != "m155" || page[49].ID != "m204" {
		t.Errorf("Expected m155..m204, got %s..%s", page[0].ID, page[49].ID)
	}
}

func TestFetchPageNoRetryWhenShortBatchIsAuthoritative(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 40)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m5", PageSize: 10})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(f.fetchLimits) != 1 {
		t.Fatalf("Short batch must not trigger a retry, got fetches %v", f.fetchLimits)
	}
	if len(page) != 4 {
		t.Fatalf("Expected the 4 remaining older messages, got %d", len(page))
	}
	if page[0].ID != "m1" || page[3].ID != "m4" {
		t.Errorf("Expected m1..m4, got %s..%s", page[0].ID, page[3].ID)
	}
}

func TestFetchPageBoundaryExactPageSizeHistory(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 25)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{PageSize: 25})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != 25 {
		t.Fatalf("Expected all 25 messages, got %d", len(page))
	}
	assertAscending(t, page)

	// Paging past the oldest message terminates with an empty page.
	older, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: page[0].ID, PageSize: 25})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(older) != 0 {
		t.Errorf("Expected empty page past the oldest message, got %d", len(older))
	}
}

func TestFetchPageClampsPageSize(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 400)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{PageSize: 1000})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != MaxPageSize {
		t.Errorf("Expected clamp to %d, got %d", MaxPageSize, len(page))
	}

	page, err = p.FetchPage(context.Background(), "123@c.us", PageCursor{})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != DefaultPageSize {
		t.Errorf("Expected default %d, got %d", DefaultPageSize, len(page))
	}
}

func TestFetchPageSizeOne(t *testing.T) {
	f := newFakeClient()
	seedHistory(f, 10)
	p := newTestPager(f)

	page, err := p.FetchPage(context.Background(), "123@c.us", PageCursor{BeforeMessageID: "m10", PageSize: 1})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(page) != 1 || page[0].ID != "m9" {
		t.Fatalf("Expected exactly m9, got %v", page)
	}
}
