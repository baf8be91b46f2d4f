package models

import (
	"fmt"
	"net"
	"strconv"
)

// ClientEntry is a client as listed in the inventory section of the config.
// Port overrides the scenario rpc port for hosts running more than one client.
type ClientEntry struct {
	ID   string `yaml:"id"`
	Host string `yaml:"host"`
	Port int    `yaml:"rpc_port,omitempty"`
}

// Client represents one client under test and its JSON-RPC endpoint.
type Client struct {
	ID       string
	Host     string
	Endpoint string
}

// NewClient creates a client reachable at http://host:port.
func NewClient(id, host string, port int) *Client {
	return &Client{
		ID:       id,
		Host:     host,
		Endpoint: "http://" + net.JoinHostPort(host, strconv.Itoa(port)),
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("%s(%s)", c.ID, c.Host)
}
