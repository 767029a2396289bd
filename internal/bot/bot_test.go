package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"
)

type nopCounter struct{}

func (nopCounter) IncrementUserRateLimit(context.Context, int64) (int64, error) { return 1, nil }

type nopToucher struct{}

func (nopToucher) TouchUserConfig(context.Context, int64, time.Time) error { return nil }

// fakeAPI answers sendMessage like the Bot API does and records requests.
type fakeAPI struct {
	mu       sync.Mutex
	requests []map[string]interface{}
	blocked  map[string]bool
	delay    time.Duration
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		http.NotFound(w, r)
		return
	}

	var params map[string]interface{}
	_ = json.NewDecoder(r.Body).Decode(&params)

	f.mu.Lock()
	f.requests = append(f.requests, params)
	blocked := f.blocked[fmt.Sprint(params["chat_id"])]
	delay := f.delay
	f.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.Header().Set("Content-Type", "application/json")
	if blocked {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":403,"description":"Forbidden: bot was blocked by the user"}`))
		return
	}
	_, _ = fmt.Fprintf(w, `{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":%v,"type":"private"},"text":"ok"}}`, params["chat_id"])
}

func (f *fakeAPI) Requests() []map[string]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]interface{}(nil), f.requests...)
}

func newTestBot(t *testing.T, api *fakeAPI) *Bot {
	t.Helper()

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := newBot(tele.Settings{
		URL:     srv.URL,
		Token:   "TEST",
		Offline: true,
	}, nopCounter{}, nopToucher{}, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestNotifySendsMarkdownToOwner(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api)

	require.NoError(t, b.Notify(context.Background(), 42, "🔔 *Price drop\\!*"))

	reqs := api.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "42", fmt.Sprint(reqs[0]["chat_id"]))
	assert.Equal(t, "🔔 *Price drop\\!*", reqs[0]["text"])
	assert.Equal(t, "MarkdownV2", reqs[0]["parse_mode"])
}

func TestNotifyReportsDeliveryFailure(t *testing.T) {
	api := &fakeAPI{blocked: map[string]bool{"42": true}}
	b := newTestBot(t, api)

	err := b.Notify(context.Background(), 42, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "blocked")
}

func TestNotifyGivesUpOnContext(t *testing.T) {
	api := &fakeAPI{delay: 500 * time.Millisecond}
	b := newTestBot(t, api)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := b.Notify(ctx, 42, "hi")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
