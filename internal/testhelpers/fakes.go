package testhelpers

import (
	"context"
	"sync"
	"sync/atomic"

	"flight-price-checker/internal/models"
)

// FakeFetcher serves canned listings keyed by SearchParams. Fn, when set,
// takes precedence.
type FakeFetcher struct {
	mu       sync.RWMutex
	listings map[models.SearchParams][]models.Listing
	errs     map[models.SearchParams]error
	calls    atomic.Int64

	Fn func(ctx context.Context, params models.SearchParams) ([]models.Listing, error)
}

func NewFakeFetcher() *FakeFetcher {
	return &FakeFetcher{
		listings: make(map[models.SearchParams][]models.Listing),
		errs:     make(map[models.SearchParams]error),
	}
}

// Set replaces the listings returned for params and clears its error.
func (f *FakeFetcher) Set(params models.SearchParams, listings ...models.Listing) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings[params] = listings
	delete(f.errs, params)
}

// Fail makes fetches for params return err.
func (f *FakeFetcher) Fail(params models.SearchParams, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[params] = err
}

func (f *FakeFetcher) Calls() int64 {
	return f.calls.Load()
}

func (f *FakeFetcher) Fetch(ctx context.Context, params models.SearchParams) ([]models.Listing, error) {
	f.calls.Add(1)
	if f.Fn != nil {
		return f.Fn(ctx, params)
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	if err := f.errs[params]; err != nil {
		return nil, err
	}
	out := make([]models.Listing, len(f.listings[params]))
	copy(out, f.listings[params])
	return out, nil
}

type Message struct {
	OwnerID int64
	Text    string
}

// RecordingNotifier keeps every delivered message.
type RecordingNotifier struct {
	mu       sync.Mutex
	messages []Message
	failFor  map[int64]error
}

func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{failFor: make(map[int64]error)}
}

// FailFor makes deliveries to ownerID return err.
func (n *RecordingNotifier) FailFor(ownerID int64, err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failFor[ownerID] = err
}

func (n *RecordingNotifier) Notify(_ context.Context, ownerID int64, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.failFor[ownerID]; err != nil {
		return err
	}
	n.messages = append(n.messages, Message{OwnerID: ownerID, Text: text})
	return nil
}

func (n *RecordingNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}

// ForOwner returns the messages delivered to ownerID.
func (n *RecordingNotifier) ForOwner(ownerID int64) []Message {
	var out []Message
	for _, m := range n.Messages() {
		if m.OwnerID == ownerID {
			out = append(out, m)
		}
	}
	return out
}
