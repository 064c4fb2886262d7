package matchmaking

import (
	"container/list"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

// GlobalTag is the affinity tag of the catch-all queue. Every waiter is
// enqueued here, and tagged waiters are enqueued in their own tier as well.
const GlobalTag = "GLOBAL"

// maxTagLength bounds the number of distinct tiers a caller can create.
const maxTagLength = 32

// NormalizeTag maps a caller-supplied affinity tag onto a queue name.
// Blank tags fall back to the global tier; tags are case-folded so "us" and
// "US" share a queue.
func NormalizeTag(tag string) string {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if tag == "" {
		return GlobalTag
	}
	if len(tag) > maxTagLength {
		cut := maxTagLength
		for cut > 0 && !utf8.RuneStart(tag[cut]) {
			cut--
		}
		tag = strings.TrimSpace(tag[:cut])
	}
	return tag
}

// waitingEntry is a client waiting for a partner.
type waitingEntry struct {
	clientID   string
	tag        string
	enqueuedAt time.Time
}

// fifo is an insertion-ordered queue with O(1) removal by client ID.
type fifo struct {
	order *list.List
	index map[string]*list.Element
}

func newFIFO() *fifo {
	return &fifo{
		order: list.New(),
		index: make(map[string]*list.Element),
	}
}

// push appends the entry unless the client is already queued here.
func (q *fifo) push(e *waitingEntry) bool {
	if _, ok := q.index[e.clientID]; ok {
		return false
	}
	q.index[e.clientID] = q.order.PushBack(e)
	return true
}

func (q *fifo) remove(clientID string) bool {
	el, ok := q.index[clientID]
	if !ok {
		return false
	}
	q.order.Remove(el)
	delete(q.index, clientID)
	return true
}

func (q *fifo) front() *waitingEntry {
	el := q.order.Front()
	if el == nil {
		return nil
	}
	return el.Value.(*waitingEntry)
}

func (q *fifo) len() int {
	return q.order.Len()
}

// ids returns the queued client IDs in arrival order.
func (q *fifo) ids() []string {
	out := make([]string, 0, q.order.Len())
	for el := q.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*waitingEntry).clientID)
	}
	return out
}

// pool is the Waiting Pool: one FIFO per affinity tag plus the global FIFO.
// A tagged entry lives in both its tier and the global queue; removing a
// client always removes it from both.
type pool struct {
	queues  map[string]*fifo
	entries map[string]*waitingEntry
}

func newPool() *pool {
	return &pool{
		queues:  map[string]*fifo{GlobalTag: newFIFO()},
		entries: make(map[string]*waitingEntry),
	}
}

func (p *pool) queue(tag string) *fifo {
	q, ok := p.queues[tag]
	if !ok {
		q = newFIFO()
		p.queues[tag] = q
	}
	return q
}

// enqueue adds a waiter to its tier and to the global queue.
// Any previous entry for the same client is dropped first.
func (p *pool) enqueue(clientID, tag string, now time.Time) *waitingEntry {
	p.remove(clientID)

	e := &waitingEntry{clientID: clientID, tag: tag, enqueuedAt: now}
	p.entries[clientID] = e
	if tag != GlobalTag {
		p.queue(tag).push(e)
	}
	p.queues[GlobalTag].push(e)
	return e
}

// remove deletes the client from every queue it is in. Tier queues that
// become empty are dropped so abandoned tags do not accumulate.
func (p *pool) remove(clientID string) bool {
	e, ok := p.entries[clientID]
	if !ok {
		return false
	}
	delete(p.entries, clientID)

	if q, ok := p.queues[e.tag]; ok && e.tag != GlobalTag {
		q.remove(clientID)
		if q.len() == 0 {
			delete(p.queues, e.tag)
		}
	}
	p.queues[GlobalTag].remove(clientID)
	return true
}

func (p *pool) contains(clientID string) bool {
	_, ok := p.entries[clientID]
	return ok
}

// next pops the partner for a requester: the head of the requester's tier
// first, then the head of the global queue. The requester itself is never
// returned; a stale self entry found at a head is discarded and the draw is
// repeated.
func (p *pool) next(tag, requester string) *waitingEntry {
	tiers := []string{GlobalTag}
	if tag != GlobalTag {
		tiers = []string{tag, GlobalTag}
	}

	for _, t := range tiers {
		for {
			q, ok := p.queues[t]
			if !ok {
				break
			}
			head := q.front()
			if head == nil {
				break
			}
			p.remove(head.clientID)
			if head.clientID == requester {
				continue
			}
			return head
		}
	}
	return nil
}

// expired returns the entries enqueued strictly before cutoff, oldest first.
func (p *pool) expired(cutoff time.Time) []*waitingEntry {
	var out []*waitingEntry
	for el := p.queues[GlobalTag].order.Front(); el != nil; el = el.Next() {
		e := el.Value.(*waitingEntry)
		if e.enqueuedAt.Before(cutoff) {
			out = append(out, e)
		}
	}
	return out
}

// rebuild recreates every queue from the entries that survive keep. Entries
// keep their global arrival order; entries the global queue had lost are
// appended by enqueue time.
func (p *pool) rebuild(keep func(*waitingEntry) bool) {
	var ordered []*waitingEntry
	seen := make(map[string]bool, len(p.entries))
	if q, ok := p.queues[GlobalTag]; ok {
		for el := q.order.Front(); el != nil; el = el.Next() {
			e := el.Value.(*waitingEntry)
			if p.entries[e.clientID] == e && !seen[e.clientID] {
				seen[e.clientID] = true
				ordered = append(ordered, e)
			}
		}
	}
	var lost []*waitingEntry
	for id, e := range p.entries {
		if !seen[id] {
			lost = append(lost, e)
		}
	}
	sort.SliceStable(lost, func(i, j int) bool {
		return lost[i].enqueuedAt.Before(lost[j].enqueuedAt)
	})
	ordered = append(ordered, lost...)

	p.queues = map[string]*fifo{GlobalTag: newFIFO()}
	p.entries = make(map[string]*waitingEntry, len(ordered))
	for _, e := range ordered {
		if !keep(e) {
			continue
		}
		p.entries[e.clientID] = e
		if e.tag != GlobalTag {
			p.queue(e.tag).push(e)
		}
		p.queues[GlobalTag].push(e)
	}
}

// sizes reports the length of every non-empty queue.
func (p *pool) sizes() map[string]int {
	out := make(map[string]int, len(p.queues))
	for tag, q := range p.queues {
		if q.len() > 0 || tag == GlobalTag {
			out[tag] = q.len()
		}
	}
	return out
}
