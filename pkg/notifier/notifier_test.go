package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"atomicdeploy/pkg/core/config"
	"atomicdeploy/pkg/core/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLog() *logger.Log {
	return logger.New("debug", &bytes.Buffer{})
}

func TestBusPublish(t *testing.T) {
	bus := NewBus(testLog())

	var got []Event
	bus.Subscribe(func(ctx context.Context, n *Notification) error {
		got = append(got, n.Event)
		return nil
	})
	bus.Subscribe(func(ctx context.Context, n *Notification) error {
		return errors.New("handler failed")
	}, EventDeploymentFailed)

	bus.Publish(context.Background(), &Notification{Event: EventDeploymentSucceeded})
	bus.Publish(context.Background(), &Notification{Event: EventDeploymentFailed})

	assert.Equal(t, []Event{EventDeploymentSucceeded, EventDeploymentFailed}, got)
}

func TestWebhookNotifier(t *testing.T) {
	type received struct {
		header string
		body   map[string]interface{}
	}
	ch := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := received{header: r.Header.Get("X-Token")}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &rec.body)
		ch <- rec
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookNotifierConfig{
		Name:    "ops",
		URL:     srv.URL,
		Headers: map[string]string{"X-Token": "secret"},
	}, nil)
	require.NoError(t, err)

	result, err := n.Send(context.Background(), &Notification{
		ID:        "run-1",
		Event:     EventDeploymentFailed,
		Title:     "部署失败",
		Content:   `copy "storage" failed`,
		Level:     NotificationLevelError,
		CreatedAt: time.Now(),
		Data:      map[string]interface{}{"directory": "abc123"},
	})
	require.NoError(t, err)
	assert.True(t, result.Success)

	rec := <-ch
	body := rec.body
	assert.Equal(t, "secret", rec.header)
	assert.Equal(t, "DeploymentFailed", body["event"])
	assert.Equal(t, `copy "storage" failed`, body["content"])
	assert.Equal(t, "abc123", body["data"].(map[string]interface{})["directory"])
}

func TestWebhookNotifierBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookNotifierConfig{Name: "ops", URL: srv.URL}, nil)
	require.NoError(t, err)

	result, err := n.Send(context.Background(), &Notification{Event: EventDeploymentSucceeded})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "500")
}

func TestAttachWebhooks(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	bus := NewBus(testLog())
	err := AttachWebhooks(bus, []config.NotifierConfig{
		{Name: "failures", URL: srv.URL, Events: []string{string(EventDeploymentFailed)}},
	}, nil)
	require.NoError(t, err)

	bus.Publish(context.Background(), &Notification{Event: EventDeploymentSucceeded})
	assert.Equal(t, int32(0), hits.Load())
	bus.Publish(context.Background(), &Notification{Event: EventDeploymentFailed})
	assert.Equal(t, int32(1), hits.Load())

	require.Error(t, AttachWebhooks(bus, []config.NotifierConfig{{Name: "bad"}}, nil))
}
