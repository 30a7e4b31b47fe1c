package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/TermStream/internal/domain/terminal"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/config"
	"github.com/GriffinCanCode/TermStream/internal/infrastructure/logging"
	"github.com/GriffinCanCode/TermStream/internal/shared/id"
)

func TestNotifierDisabledWithoutURL(t *testing.T) {
	n := New(config.WebhookConfig{}, logging.NewNop(), nil)
	assert.Nil(t, n)
}

func TestNotifierDeliversEvent(t *testing.T) {
	var (
		mu       sync.Mutex
		received []payload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p payload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := New(config.WebhookConfig{
		URL:        srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		QueueSize:  8,
	}, logging.NewNop(), nil)
	require.NotNil(t, n)
	defer n.Close()

	code := 0
	sid := id.NewSessionID()
	n.OnEvent(terminal.Event{
		SessionID: sid,
		Kind:      terminal.EventExited,
		ExitCode:  &code,
		Time:      time.Now(),
	})

	deadline := time.Now().Add(3 * time.Second)
	for {
		mu.Lock()
		got := len(received)
		mu.Unlock()
		if got == 1 {
			break
		}
		require.True(t, time.Now().Before(deadline), "event never delivered")
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, sid.String(), received[0].SessionID)
	assert.Equal(t, "exited", received[0].Event)
	require.NotNil(t, received[0].ExitCode)
	assert.Equal(t, 0, *received[0].ExitCode)
}

func TestNotifierOverflowDropsAndCounts(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(block)

	n := New(config.WebhookConfig{
		URL:        srv.URL,
		Timeout:    5 * time.Second,
		MaxRetries: 0,
		QueueSize:  1,
	}, logging.NewNop(), nil)
	require.NotNil(t, n)

	// One in flight, one queued, the rest must drop without blocking.
	for i := 0; i < 10; i++ {
		n.OnEvent(terminal.Event{SessionID: id.NewSessionID(), Kind: terminal.EventCreated, Time: time.Now()})
	}
	assert.Greater(t, n.Dropped(), uint64(0))
}
