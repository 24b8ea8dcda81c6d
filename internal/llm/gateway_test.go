package llm

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/common"
)

type fakeBackend struct {
	errs      []error
	responses []string
	calls     int
	mu        sync.Mutex
}

func (f *fakeBackend) next() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return "ok", nil
}

func (f *fakeBackend) chat(context.Context, []Message, Format) (string, error) {
	return f.next()
}

func (f *fakeBackend) vision(context.Context, string, string, Format) (string, error) {
	return f.next()
}

func (f *fakeBackend) transcribe(context.Context, string) (string, error) {
	return f.next()
}

func testClient(b backend) *Client {
	cfg := Config{
		Name:       "test",
		Timeout:    time.Second,
		RetryDelay: time.Millisecond,
		MaxRetries: 3,
		RateLimit:  1000,
	}
	return newClient(cfg, b, nil)
}

func TestClientRetries(t *testing.T) {
	t.Run("retries retryable failures", func(t *testing.T) {
		b := &fakeBackend{
			errs:      []error{&common.RetryableError{Err: errors.New("503"), Retryable: true}},
			responses: []string{"", "hello"},
		}
		out, err := testClient(b).CompleteText(context.Background(), UserMessage("hi"), FormatText)
		require.NoError(t, err)
		assert.Equal(t, "hello", out)
		assert.Equal(t, 2, b.calls)
	})

	t.Run("stops on non-retryable failure", func(t *testing.T) {
		b := &fakeBackend{
			errs: []error{&common.RetryableError{Err: errors.New("400"), Retryable: false}},
		}
		_, err := testClient(b).CompleteText(context.Background(), UserMessage("hi"), FormatJSON)
		require.Error(t, err)
		assert.Equal(t, 1, b.calls)
	})

	t.Run("empty responses are retried then surfaced", func(t *testing.T) {
		b := &fakeBackend{responses: []string{"", " ", "\n"}}
		_, err := testClient(b).CompleteVision(context.Background(), "img.jpg", "read", FormatText)
		require.Error(t, err)
		assert.ErrorIs(t, err, common.ErrEmptyResponse)
		assert.Equal(t, 3, b.calls)
	})

	t.Run("empty transcription is accepted", func(t *testing.T) {
		b := &fakeBackend{responses: []string{""}}
		out, err := testClient(b).TranscribeAudio(context.Background(), "note.wav")
		require.NoError(t, err)
		assert.Empty(t, out)
		assert.Equal(t, 1, b.calls)
	})

	t.Run("canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		b := &fakeBackend{}
		_, err := testClient(b).CompleteText(ctx, UserMessage("hi"), FormatText)
		require.Error(t, err)
		assert.Equal(t, 0, b.calls)
	})
}

func TestClassifyStatus(t *testing.T) {
	base := errors.New("boom")
	tests := []struct {
		name      string
		status    int
		retryable bool
		rateLimit bool
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, retryable: true, rateLimit: true},
		{name: "server error", status: http.StatusBadGateway, retryable: true},
		{name: "bad request", status: http.StatusBadRequest, retryable: false},
		{name: "unauthorized", status: http.StatusUnauthorized, retryable: false},
		{name: "transport failure", status: 0, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyStatus(tt.status, base)
			assert.ErrorIs(t, err, base)
			assert.Equal(t, tt.retryable, common.IsRetryable(err))
			assert.Equal(t, tt.rateLimit, errors.Is(err, common.ErrRateLimit))
		})
	}
}

func TestRouter(t *testing.T) {
	primary := testClient(&fakeBackend{})
	secondary := testClient(&fakeBackend{})

	r := NewRouter(primary, secondary)
	assert.Same(t, primary, r.Backend(BackendPrimary))
	assert.Same(t, secondary, r.Backend(BackendSecondary))

	r = NewRouter(primary, nil)
	assert.Same(t, primary, r.Backend(BackendSecondary))
}
