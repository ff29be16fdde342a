package models

import (
	"fmt"
	"time"
)

// NodeStatus represents the current status of a peer node
type NodeStatus string

const (
	NodeStatusOnline   NodeStatus = "online"
	NodeStatusOffline  NodeStatus = "offline"
	NodeStatusAlerting NodeStatus = "alerting"
)

// Node is a peer instance discovered on the local network, or the local
// instance itself.
type Node struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	IPAddress string     `json:"ipAddress"`
	APIPort   int        `json:"apiPort"`
	OSInfo    string     `json:"osInfo"`
	Version   string     `json:"version"`
	Status    NodeStatus `json:"status"`
	LastSeen  time.Time  `json:"lastSeen"`
}

// APIURL returns the base URL of the node's HTTP API.
func (n *Node) APIURL() string {
	return fmt.Sprintf("http://%s:%d", n.IPAddress, n.APIPort)
}
