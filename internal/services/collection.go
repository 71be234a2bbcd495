package services

import (
	"snow-extractor/internal/models"
)

// TicketCollection is an ordered, append-only set of canonical tickets keyed
// by sys_id. It is not safe for concurrent use; the extractor serializes
// access.
type TicketCollection struct {
	tickets []models.Ticket
	seen    map[string]struct{}
}

// NewTicketCollection creates an empty collection
func NewTicketCollection() *TicketCollection {
	return &TicketCollection{
		seen: make(map[string]struct{}),
	}
}

// Merge normalizes incoming records and appends those whose sys_id is not yet
// present, in input order. Records without an identifier are dropped. It
// returns the number of tickets added.
func (c *TicketCollection) Merge(records []models.RawRecord, fields []string) int {
	tickets := make([]models.Ticket, 0, len(records))
	for _, raw := range records {
		tickets = append(tickets, Normalize(raw, fields))
	}
	return c.Restore(tickets)
}

// Restore appends already canonical tickets with the same dedup rule as Merge
func (c *TicketCollection) Restore(tickets []models.Ticket) int {
	added := 0
	for _, ticket := range tickets {
		if ticket.SysID == "" {
			continue
		}
		if _, exists := c.seen[ticket.SysID]; exists {
			continue
		}
		c.seen[ticket.SysID] = struct{}{}
		c.tickets = append(c.tickets, ticket)
		added++
	}
	return added
}

// Clear empties the collection
func (c *TicketCollection) Clear() {
	c.tickets = nil
	c.seen = make(map[string]struct{})
}

// Size returns the number of tickets held
func (c *TicketCollection) Size() int {
	return len(c.tickets)
}

// Tickets returns a copy of the tickets in first-seen order
func (c *TicketCollection) Tickets() []models.Ticket {
	out := make([]models.Ticket, len(c.tickets))
	copy(out, c.tickets)
	return out
}

// TableTypes returns the distinct table tags in first-seen order
func (c *TicketCollection) TableTypes() []string {
	var types []string
	seen := make(map[string]bool)
	for _, t := range c.tickets {
		if !seen[t.TableType] {
			seen[t.TableType] = true
			types = append(types, t.TableType)
		}
	}
	return types
}
