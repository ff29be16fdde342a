package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hardwatch/hardwatch/pkg/models"
)

type staticPeers struct {
	nodes []models.Node
}

func (p *staticPeers) LivePeers() []models.Node { return p.nodes }

func localNodeFn() func() models.Node {
	return func() models.Node {
		return models.Node{ID: "local-id", Name: "local", IPAddress: "127.0.0.1", APIPort: 3030}
	}
}

// peerFromServer turns an httptest server URL into a directory-style node.
func peerFromServer(t *testing.T, id string, srv *httptest.Server) models.Node {
	t.Helper()
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return models.Node{ID: id, Name: "peer-" + id, IPAddress: u.Hostname(), APIPort: port}
}

func TestBroadcastDeliversToAllLivePeers(t *testing.T) {
	var received atomic.Int32
	var lastBody atomic.Value

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/alerts/notify", r.URL.Path)

		var notification models.AlertNotification
		require.NoError(t, json.NewDecoder(r.Body).Decode(&notification))
		lastBody.Store(notification)
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	srv1 := httptest.NewServer(handler)
	defer srv1.Close()
	srv2 := httptest.NewServer(handler)
	defer srv2.Close()

	peers := &staticPeers{nodes: []models.Node{
		peerFromServer(t, "a", srv1),
		peerFromServer(t, "b", srv2),
	}}
	b := NewBroadcaster(peers, localNodeFn(), 2*time.Second)

	event := models.AlertEvent{
		RuleID:       "cpu_high",
		RuleName:     "CPU high",
		Severity:     models.RuleSeverityWarning,
		Message:      "local: cpu_usage=91.0 > 80.0",
		SourceNodeID: "local-id",
		Timestamp:    time.Unix(100, 0),
	}
	result := b.Broadcast(context.Background(), event)

	assert.Equal(t, BroadcastResult{Delivered: 2, Failed: 0}, result)
	assert.Equal(t, int32(2), received.Load())

	notification := lastBody.Load().(models.AlertNotification)
	assert.Equal(t, "local-id", notification.SourceNodeID)
	assert.Equal(t, "local", notification.SourceNodeName)
	assert.Equal(t, "cpu_high", notification.RuleID)
}

func TestBroadcastCountsPartialFailures(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	failing := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	srv1 := httptest.NewServer(ok)
	defer srv1.Close()
	srv2 := httptest.NewServer(failing)
	defer srv2.Close()
	srv3 := httptest.NewServer(ok)
	defer srv3.Close()

	peers := &staticPeers{nodes: []models.Node{
		peerFromServer(t, "a", srv1),
		peerFromServer(t, "b", srv2),
		peerFromServer(t, "c", srv3),
	}}
	b := NewBroadcaster(peers, localNodeFn(), 2*time.Second)

	result := b.Broadcast(context.Background(), alertEvent("r1", models.RuleSeverityWarning, "local-id"))
	assert.Equal(t, BroadcastResult{Delivered: 2, Failed: 1}, result)
}

func TestBroadcastSlowPeerTimesOut(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	slow := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	srv1 := httptest.NewServer(ok)
	defer srv1.Close()
	srv2 := httptest.NewServer(slow)
	defer srv2.Close()

	peers := &staticPeers{nodes: []models.Node{
		peerFromServer(t, "a", srv1),
		peerFromServer(t, "b", srv2),
	}}
	b := NewBroadcaster(peers, localNodeFn(), 100*time.Millisecond)

	start := time.Now()
	result := b.Broadcast(context.Background(), alertEvent("r1", models.RuleSeverityCritical, "local-id"))

	assert.Equal(t, BroadcastResult{Delivered: 1, Failed: 1}, result)
	assert.Less(t, time.Since(start), time.Second, "slow peer must not block past its timeout")
}

func TestBroadcastUnreachablePeer(t *testing.T) {
	// closed server yields connection refused
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	node := peerFromServer(t, "a", srv)
	srv.Close()

	peers := &staticPeers{nodes: []models.Node{node}}
	b := NewBroadcaster(peers, localNodeFn(), time.Second)

	result := b.Broadcast(context.Background(), alertEvent("r1", models.RuleSeverityWarning, "local-id"))
	assert.Equal(t, BroadcastResult{Delivered: 0, Failed: 1}, result)
}

func TestBroadcastNoPeers(t *testing.T) {
	b := NewBroadcaster(&staticPeers{}, localNodeFn(), time.Second)
	result := b.Broadcast(context.Background(), alertEvent("r1", models.RuleSeverityWarning, "local-id"))
	assert.Zero(t, result.Delivered)
	assert.Zero(t, result.Failed)
}
