package models

import (
	"errors"
	"fmt"
)

// Inventory is the read-only set of clients of a scenario run.
// Order follows the inventory file and is stable for the whole run.
type Inventory struct {
	ids     []string
	clients map[string]*Client
}

// NewInventory builds an inventory from config entries.
func NewInventory(entries []ClientEntry, port int) (*Inventory, error) {
	if len(entries) == 0 {
		return nil, errors.New("empty inventory")
	}
	inv := &Inventory{
		ids:     make([]string, 0, len(entries)),
		clients: make(map[string]*Client, len(entries)),
	}
	for _, entry := range entries {
		if _, exists := inv.clients[entry.ID]; exists {
			return nil, fmt.Errorf("duplicate client id %s", entry.ID)
		}
		clientPort := port
		if entry.Port != 0 {
			clientPort = entry.Port
		}
		inv.ids = append(inv.ids, entry.ID)
		inv.clients[entry.ID] = NewClient(entry.ID, entry.Host, clientPort)
	}
	return inv, nil
}

// IDs returns a copy of the client identifiers in inventory order.
func (inv *Inventory) IDs() []string {
	ids := make([]string, len(inv.ids))
	copy(ids, inv.ids)
	return ids
}

// Clients returns the clients in inventory order.
func (inv *Inventory) Clients() []*Client {
	clients := make([]*Client, 0, len(inv.ids))
	for _, id := range inv.ids {
		clients = append(clients, inv.clients[id])
	}
	return clients
}

// Client looks up a client by identifier.
func (inv *Inventory) Client(id string) (*Client, bool) {
	c, ok := inv.clients[id]
	return c, ok
}

// Len returns the number of clients.
func (inv *Inventory) Len() int {
	return len(inv.ids)
}
