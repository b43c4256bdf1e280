// Package memctl implements the memory-controller request/reply
// handshake interface (spec.md §1, §4.9): a bounded-latency model of
// memory round trips that ROP caches and other stages issue
// MemoryTransactions against.
package memctl

import "fmt"

// TransactionKind distinguishes a read fill from a write-back.
type TransactionKind uint8

const (
	TransactionRead TransactionKind = iota
	TransactionWrite
)

// Transaction is one in-flight memory request/reply. ID lets a cache
// correlate a reply back to the line awaiting it.
type Transaction struct {
	ID      uint64
	Kind    TransactionKind
	Address uint64
	Bytes   []byte // request payload for writes, filled payload for read replies
	Done    bool   // true once this transaction represents a completed reply
}

// Controller models a fixed-latency memory subsystem: requests issued at
// cycle C produce a Done reply at cycle C+Latency, served in FIFO order,
// at most Bandwidth replies completing per cycle.
type Controller struct {
	Latency   int
	Bandwidth int

	nextID  uint64
	inFlight []inflightEntry
}

type inflightEntry struct {
	tx        Transaction
	readyAt   uint64
}

// New builds a Controller with the given latency (cycles) and bandwidth
// (replies completed per cycle).
func New(latency, bandwidth int) *Controller {
	if latency < 1 {
		latency = 1
	}
	if bandwidth < 1 {
		bandwidth = 1
	}
	return &Controller{Latency: latency, Bandwidth: bandwidth}
}

// Issue submits a new transaction at cycle, returning its ID.
func (c *Controller) Issue(cycle uint64, kind TransactionKind, address uint64, bytes []byte) uint64 {
	c.nextID++
	id := c.nextID
	c.inFlight = append(c.inFlight, inflightEntry{
		tx:      Transaction{ID: id, Kind: kind, Address: address, Bytes: bytes},
		readyAt: cycle + uint64(c.Latency),
	})
	return id
}

// Step advances the controller by one cycle, returning up to Bandwidth
// transactions that have completed as of cycle.
func (c *Controller) Step(cycle uint64) []Transaction {
	var completed []Transaction
	var remaining []inflightEntry
	for _, e := range c.inFlight {
		if len(completed) < c.Bandwidth && e.readyAt <= cycle {
			e.tx.Done = true
			completed = append(completed, e.tx)
			continue
		}
		remaining = append(remaining, e)
	}
	c.inFlight = remaining
	return completed
}

// Pending reports how many transactions are still in flight.
func (c *Controller) Pending() int { return len(c.inFlight) }

func (c *Controller) String() string {
	return fmt.Sprintf("memctl.Controller{latency=%d bandwidth=%d pending=%d}", c.Latency, c.Bandwidth, len(c.inFlight))
}
