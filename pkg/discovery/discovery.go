package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/sirupsen/logrus"

	"github.com/hardwatch/hardwatch/pkg/models"
)

const mdnsDomain = "local."

// Service announces the local node over mDNS/DNS-SD and browses for peers,
// feeding every resolved announcement into the directory.
type Service struct {
	serviceType string
	directory   *Directory
	server      *zeroconf.Server
	cancel      context.CancelFunc
}

// NewService creates a discovery service for the given DNS-SD service type
// (e.g. "_hardwatch._tcp").
func NewService(serviceType string, directory *Directory) *Service {
	return &Service{
		serviceType: serviceType,
		directory:   directory,
	}
}

// Start registers the local service and begins browsing. Registration failure
// is returned; the node can still run without peers.
func (s *Service) Start(ctx context.Context) error {
	self := s.directory.Self()

	txt := []string{
		"id=" + self.ID,
		"name=" + self.Name,
		"os_info=" + self.OSInfo,
		"version=" + self.Version,
	}
	server, err := zeroconf.Register(self.Name, s.serviceType, mdnsDomain, self.APIPort, txt, nil)
	if err != nil {
		return fmt.Errorf("register mdns service: %w", err)
	}
	s.server = server
	logrus.Infof("Registered mDNS service %s as %q on port %d", s.serviceType, self.Name, self.APIPort)

	browseCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.browseLoop(browseCtx)
	return nil
}

// Stop shuts the announcer and browser down.
func (s *Service) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server != nil {
		s.server.Shutdown()
	}
}

// browseLoop restarts the browse whenever the resolver ends, so transient
// network trouble does not end discovery for the process lifetime.
func (s *Service) browseLoop(ctx context.Context) {
	for {
		if err := s.browse(ctx); err != nil && ctx.Err() == nil {
			logrus.Errorf("mDNS browse failed, restarting: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (s *Service) browse(ctx context.Context) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("create mdns resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	go func() {
		for entry := range entries {
			if node, ok := nodeFromEntry(entry); ok {
				s.directory.Upsert(node)
			}
		}
	}()

	return resolver.Browse(ctx, s.serviceType, mdnsDomain, entries)
}

// nodeFromEntry extracts a peer record from a resolved announcement. Entries
// without the expected TXT properties are ignored.
func nodeFromEntry(entry *zeroconf.ServiceEntry) (models.Node, bool) {
	props := make(map[string]string, len(entry.Text))
	for _, kv := range entry.Text {
		if k, v, ok := strings.Cut(kv, "="); ok {
			props[k] = v
		}
	}
	if props["id"] == "" {
		return models.Node{}, false
	}

	// prefer IPv4 the way the announcing side resolves itself
	var ip string
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0].String()
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	} else {
		return models.Node{}, false
	}

	name := props["name"]
	if name == "" {
		name = entry.Instance
	}

	return models.Node{
		ID:        props["id"],
		Name:      name,
		IPAddress: ip,
		APIPort:   entry.Port,
		OSInfo:    props["os_info"],
		Version:   props["version"],
		Status:    models.NodeStatusOnline,
	}, true
}
