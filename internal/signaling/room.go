package signaling

import "github.com/MOHAMEDFAZ/OpenDrop/internal/protocol"

// Room is a rendezvous group of participants identified by a 6-digit
// numeric code. Membership is kept in join order; the hub goroutine is
// the only writer.
type Room struct {
	// Code is the 6-digit identifier, leading zeros preserved.
	Code string

	// members holds participants ordered by join time.
	members []*Client
}

// Add appends a participant. The caller guarantees the id is not
// already present.
func (r *Room) Add(c *Client) {
	r.members = append(r.members, c)
}

// Remove deletes the participant with the given id and reports whether
// it was a member.
func (r *Room) Remove(userID string) bool {
	for i, m := range r.members {
		if m.ID == userID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the member with the given id, or nil.
func (r *Room) Get(userID string) *Client {
	for _, m := range r.members {
		if m.ID == userID {
			return m
		}
	}
	return nil
}

// Empty reports whether the room has no members left.
func (r *Room) Empty() bool {
	return len(r.members) == 0
}

// Size returns the current member count.
func (r *Room) Size() int {
	return len(r.members)
}

// Users returns an immutable membership snapshot in join order,
// carrying ids and display names only.
func (r *Room) Users() []protocol.User {
	users := make([]protocol.User, len(r.members))
	for i, m := range r.members {
		users[i] = protocol.User{UserID: m.ID, UserName: m.Name}
	}
	return users
}
