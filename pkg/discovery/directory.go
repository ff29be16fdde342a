package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// removeAfterFactor scales the liveness timeout into the point where a silent
// node is dropped from the table entirely.
const removeAfterFactor = 10

// Directory is the soft-state table of known peer nodes. The discovery
// browser refreshes entries, a periodic sweep expires them, and readers (API,
// broadcaster) get point-in-time copies. The local node is tracked separately
// and never appears among the peers.
type Directory struct {
	mu              sync.RWMutex
	nodes           map[string]*models.Node
	self            models.Node
	livenessTimeout time.Duration
	sweepInterval   time.Duration
	now             func() time.Time

	stopMu sync.Mutex
	stop   chan struct{}
	wg     sync.WaitGroup
}

// NewDirectory creates a directory for the given local node.
func NewDirectory(self models.Node, livenessTimeout, sweepInterval time.Duration) *Directory {
	if livenessTimeout <= 0 {
		livenessTimeout = 30 * time.Second
	}
	if sweepInterval <= 0 {
		sweepInterval = 5 * time.Second
	}
	return &Directory{
		nodes:           make(map[string]*models.Node),
		self:            self,
		livenessTimeout: livenessTimeout,
		sweepInterval:   sweepInterval,
		now:             time.Now,
	}
}

// SetNow overrides the time source, for tests.
func (d *Directory) SetNow(now func() time.Time) {
	d.now = now
}

// Self returns the local node with a fresh last-seen timestamp.
func (d *Directory) Self() models.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	self := d.self
	self.LastSeen = d.now()
	return self
}

// Upsert inserts or refreshes a peer announcement. The local node is ignored.
// A refresh brings an Offline node back Online; an Alerting node stays
// Alerting until its alerts are acknowledged.
func (d *Directory) Upsert(node models.Node) {
	if node.ID == "" || node.ID == d.self.ID {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	existing, ok := d.nodes[node.ID]
	if !ok {
		node.LastSeen = d.now()
		if node.Status == "" {
			node.Status = models.NodeStatusOnline
		}
		d.nodes[node.ID] = &node
		logrus.Infof("Discovered peer node %s (%s) at %s:%d", node.Name, node.ID, node.IPAddress, node.APIPort)
		return
	}

	existing.Name = node.Name
	existing.IPAddress = node.IPAddress
	existing.APIPort = node.APIPort
	existing.OSInfo = node.OSInfo
	existing.Version = node.Version
	existing.LastSeen = d.now()
	if existing.Status != models.NodeStatusAlerting {
		existing.Status = models.NodeStatusOnline
	}
}

// Sweep expires silent nodes: Offline past the liveness timeout, removed
// entirely after prolonged absence.
func (d *Directory) Sweep() {
	now := d.now()
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, node := range d.nodes {
		silence := now.Sub(node.LastSeen)
		if silence > d.livenessTimeout*removeAfterFactor {
			logrus.Infof("Removing long-gone peer node %s (%s)", node.Name, id)
			delete(d.nodes, id)
			continue
		}
		if silence > d.livenessTimeout && node.Status != models.NodeStatusOffline {
			logrus.Infof("Peer node %s (%s) is offline", node.Name, id)
			node.Status = models.NodeStatusOffline
		}
	}
}

// Nodes returns all known peers sorted by name.
func (d *Directory) Nodes() []models.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Node, 0, len(d.nodes))
	for _, node := range d.nodes {
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Get returns one peer by id.
func (d *Directory) Get(id string) (models.Node, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	node, ok := d.nodes[id]
	if !ok {
		return models.Node{}, false
	}
	return *node, true
}

// LivePeers returns the peers broadcast targets: everything not Offline.
func (d *Directory) LivePeers() []models.Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]models.Node, 0, len(d.nodes))
	for _, node := range d.nodes {
		if node.Status == models.NodeStatusOffline {
			continue
		}
		out = append(out, *node)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clear drops every known peer.
func (d *Directory) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nodes = make(map[string]*models.Node)
}

// MarkAlerting flags the node as the source of unacknowledged error/critical
// alerts. Unknown ids (including the local node) are ignored.
func (d *Directory) MarkAlerting(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if node, ok := d.nodes[nodeID]; ok && node.Status != models.NodeStatusOffline {
		node.Status = models.NodeStatusAlerting
	}
}

// ClearAlerting returns an Alerting node to its liveness-derived status.
func (d *Directory) ClearAlerting(nodeID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	node, ok := d.nodes[nodeID]
	if !ok || node.Status != models.NodeStatusAlerting {
		return
	}
	if d.now().Sub(node.LastSeen) > d.livenessTimeout {
		node.Status = models.NodeStatusOffline
	} else {
		node.Status = models.NodeStatusOnline
	}
}

// Start launches the periodic sweep.
func (d *Directory) Start() {
	d.stopMu.Lock()
	if d.stop != nil {
		d.stopMu.Unlock()
		return
	}
	d.stop = make(chan struct{})
	stop := d.stop
	d.stopMu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.Sweep()
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the sweep loop.
func (d *Directory) Stop() {
	d.stopMu.Lock()
	stop := d.stop
	d.stop = nil
	d.stopMu.Unlock()
	if stop != nil {
		close(stop)
	}
	d.wg.Wait()
}
