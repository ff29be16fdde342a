package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v4/host"

	"github.com/hardwatch/hardwatch/pkg/models"
)

// NewLocalNode builds the identity record announced for this instance.
func NewLocalNode(ctx context.Context, apiPort int, version string) models.Node {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		hostname = "hardwatch-node"
	}

	osInfo := "unknown"
	if info, err := host.InfoWithContext(ctx); err == nil {
		osInfo = fmt.Sprintf("%s %s", info.Platform, info.PlatformVersion)
	}

	return models.Node{
		ID:        uuid.New().String(),
		Name:      hostname,
		IPAddress: outboundIP(),
		APIPort:   apiPort,
		OSInfo:    osInfo,
		Version:   version,
		Status:    models.NodeStatusOnline,
		LastSeen:  time.Now(),
	}
}

// outboundIP finds the local address used for LAN traffic. No packets are
// sent; the dial only selects a route.
func outboundIP() string {
	conn, err := net.Dial("udp", "192.168.1.1:80")
	if err != nil {
		return firstNonLoopbackIP()
	}
	defer conn.Close()
	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return addr.IP.String()
	}
	return firstNonLoopbackIP()
}

func firstNonLoopbackIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}
