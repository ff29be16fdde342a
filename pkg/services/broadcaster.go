package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// PeerLister supplies the currently live peers, in production the node directory.
type PeerLister interface {
	LivePeers() []models.Node
}

// BroadcastResult summarizes one fan-out. A failed peer never fails the
// broadcast as a whole.
type BroadcastResult struct {
	Delivered int
	Failed    int
}

// Broadcaster delivers locally fired alert events to every live peer over its
// /alerts/notify endpoint. Each peer call runs concurrently with an
// independent timeout; failures are logged and counted, never retried.
type Broadcaster struct {
	peers     PeerLister
	localNode func() models.Node
	client    *http.Client
	timeout   time.Duration
}

// NewBroadcaster builds a broadcaster with a per-peer call timeout.
func NewBroadcaster(peers PeerLister, localNode func() models.Node, timeout time.Duration) *Broadcaster {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Broadcaster{
		peers:     peers,
		localNode: localNode,
		client:    &http.Client{Timeout: timeout},
		timeout:   timeout,
	}
}

// Broadcast fans the event out to all live peers and reports per-peer outcomes.
func (b *Broadcaster) Broadcast(ctx context.Context, event models.AlertEvent) BroadcastResult {
	local := b.localNode()
	notification := models.AlertNotification{
		SourceNodeID:   local.ID,
		SourceNodeName: local.Name,
		RuleID:         event.RuleID,
		RuleName:       event.RuleName,
		Severity:       event.Severity,
		Message:        event.Message,
		Timestamp:      event.Timestamp,
	}

	targets := b.peers.LivePeers()
	if len(targets) == 0 {
		return BroadcastResult{}
	}

	var wg sync.WaitGroup
	outcomes := make(chan error, len(targets))
	for _, peer := range targets {
		wg.Add(1)
		go func(peer models.Node) {
			defer wg.Done()
			err := b.notifyPeer(ctx, peer, &notification)
			if err != nil {
				logrus.Errorf("Failed to notify peer %s (%s): %v", peer.Name, peer.ID, err)
			} else {
				logrus.Infof("Notified peer %s of alert %s", peer.Name, event.RuleID)
			}
			outcomes <- err
		}(peer)
	}
	wg.Wait()
	close(outcomes)

	var result BroadcastResult
	for err := range outcomes {
		if err != nil {
			result.Failed++
		} else {
			result.Delivered++
		}
	}
	if result.Failed > 0 {
		logrus.Warnf("Broadcast of alert %s: %d delivered, %d failed", event.RuleID, result.Delivered, result.Failed)
	}
	return result
}

func (b *Broadcaster) notifyPeer(ctx context.Context, peer models.Node, notification *models.AlertNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost,
		peer.APIURL()+"/alerts/notify", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("peer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("peer responded %d", resp.StatusCode)
	}
	return nil
}
