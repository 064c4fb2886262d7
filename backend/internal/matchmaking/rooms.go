package matchmaking

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Room is an active pairing of exactly two clients.
type Room struct {
	ID        string    `json:"room_id"`
	Members   [2]string `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

// Other returns the member that is not clientID.
func (r Room) Other(clientID string) string {
	if r.Members[0] == clientID {
		return r.Members[1]
	}
	return r.Members[0]
}

// Has reports whether clientID is a member of the room.
func (r Room) Has(clientID string) bool {
	return r.Members[0] == clientID || r.Members[1] == clientID
}

// directory is the Room Directory together with the Pair Index.
// Both maps are only ever changed by create and remove, which keeps
// pairs[a] == b <=> pairs[b] == a for every room {a, b}.
type directory struct {
	rooms  map[string]*Room
	pairs  map[string]string // client -> partner
	roomOf map[string]string // client -> room ID
}

func newDirectory() *directory {
	return &directory{
		rooms:  make(map[string]*Room),
		pairs:  make(map[string]string),
		roomOf: make(map[string]string),
	}
}

func (d *directory) create(id, a, b string, now time.Time) *Room {
	room := &Room{ID: id, Members: [2]string{a, b}, CreatedAt: now}
	d.rooms[id] = room
	d.pairs[a] = b
	d.pairs[b] = a
	d.roomOf[a] = id
	d.roomOf[b] = id
	return room
}

func (d *directory) partner(clientID string) (string, bool) {
	peer, ok := d.pairs[clientID]
	return peer, ok
}

func (d *directory) lookup(clientID string) (*Room, bool) {
	id, ok := d.roomOf[clientID]
	if !ok {
		return nil, false
	}
	room, ok := d.rooms[id]
	return room, ok
}

// remove deletes the room and both of its Pair Index entries.
func (d *directory) remove(roomID string) *Room {
	room, ok := d.rooms[roomID]
	if !ok {
		return nil
	}
	delete(d.rooms, roomID)
	for _, m := range room.Members {
		if d.roomOf[m] == roomID {
			delete(d.pairs, m)
			delete(d.roomOf, m)
		}
	}
	return room
}

// rebuild recomputes the Pair Index from the rooms that survive keep.
func (d *directory) rebuild(keep func(*Room) bool) []*Room {
	var dropped []*Room
	d.pairs = make(map[string]string, len(d.pairs))
	d.roomOf = make(map[string]string, len(d.roomOf))

	for id, room := range d.rooms {
		a, b := room.Members[0], room.Members[1]
		_, aTaken := d.roomOf[a]
		_, bTaken := d.roomOf[b]
		if id != room.ID || a == b || aTaken || bTaken || !keep(room) {
			delete(d.rooms, id)
			dropped = append(dropped, room)
			continue
		}
		d.pairs[a] = b
		d.pairs[b] = a
		d.roomOf[a] = id
		d.roomOf[b] = id
	}
	return dropped
}

// newRoomIDs returns a generator of room identifiers. IDs are ULIDs: a
// millisecond timestamp followed by random bits that increase monotonically
// within the same millisecond, so two rooms never share an ID in one process.
// The generator is not safe for concurrent use; the engine calls it under its
// lock.
func newRoomIDs() func(time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return func(t time.Time) string {
		return "room_" + strings.ToLower(ulid.MustNew(ulid.Timestamp(t), entropy).String())
	}
}
