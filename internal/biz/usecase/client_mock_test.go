package usecase

import (
	"context"
	"sync"

	"github.com/wabridge/wabridge/internal/biz/repo"
)

// fakeClient implements repo.ClientRepo for tests. The history slice is kept
// oldest-first; fetches return the most recent limit entries, oriented
// newest-first unless oldestFirstFetch is set (the real source's order is
// inconsistent, so both orientations are exercised).
type fakeClient struct {
	mu sync.Mutex

	history          []repo.RawMessage
	oldestFirstFetch bool
	fetchLimits      []int
	fetchErr         error

	sentTexts     []string
	sendTextErrs  []error
	textCalls     int
	mediaCalls    []repo.SendMediaOptions
	sendMediaErrs []error

	mediaByID     map[string]*repo.MediaPayload
	downloadErr   error
	downloadCalls int

	chats    []repo.ChatInfo
	contacts []repo.ContactInfo

	seenChats []string
	events    chan repo.ClientEvent
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		mediaByID: make(map[string]*repo.MediaPayload),
		events:    make(chan repo.ClientEvent, 16),
	}
}

func (f *fakeClient) Start(ctx context.Context) error { return nil }
func (f *fakeClient) Stop()                           {}

func (f *fakeClient) Events() <-chan repo.ClientEvent { return f.events }

func (f *fakeClient) FetchMessages(ctx context.Context, chatID string, limit int) ([]repo.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchLimits = append(f.fetchLimits, limit)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}

	n := len(f.history)
	if limit > n {
		limit = n
	}
	recent := f.history[n-limit:]

	out := make([]repo.RawMessage, len(recent))
	if f.oldestFirstFetch {
		copy(out, recent)
	} else {
		for i := range recent {
			out[len(recent)-1-i] = recent[i]
		}
	}
	return out, nil
}

func (f *fakeClient) ListChats(ctx context.Context) ([]repo.ChatInfo, error) {
	return f.chats, nil
}

func (f *fakeClient) ListContacts(ctx context.Context) ([]repo.ContactInfo, error) {
	return f.contacts, nil
}

func (f *fakeClient) SendText(ctx context.Context, chatID, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := f.textCalls
	f.textCalls++
	if call < len(f.sendTextErrs) && f.sendTextErrs[call] != nil {
		return f.sendTextErrs[call]
	}
	f.sentTexts = append(f.sentTexts, body)
	return nil
}

func (f *fakeClient) SendMedia(ctx context.Context, chatID string, opts repo.SendMediaOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	call := len(f.mediaCalls)
	f.mediaCalls = append(f.mediaCalls, opts)
	if call < len(f.sendMediaErrs) && f.sendMediaErrs[call] != nil {
		return f.sendMediaErrs[call]
	}
	return nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, messageID string) (*repo.MediaPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadCalls++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if p, ok := f.mediaByID[messageID]; ok {
		return p, nil
	}
	return nil, context.Canceled
}

func (f *fakeClient) ProfilePictureURL(ctx context.Context, chatID string) (string, error) {
	return "https://example.invalid/pic.jpg", nil
}

func (f *fakeClient) ProfilePictureImage(ctx context.Context, chatID string) ([]byte, string, error) {
	return []byte{0xff, 0xd8}, "image/jpeg", nil
}

func (f *fakeClient) MarkChatSeen(ctx context.Context, chatID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seenChats = append(f.seenChats, chatID)
	return nil
}
