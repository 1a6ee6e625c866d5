// Package registry holds the authoritative in-memory model of room
// membership: which users are in which room, under which identity, and the
// connection currently representing each of them.
//
// The registry performs no I/O and never calls back into the relay or the
// transport. Every operation is a short atomic map mutation behind a single
// mutex, so it is safe under interleaved access from concurrent connection
// handlers. Absence is a first-class result on all read paths; there are no
// "not found" errors.
package registry

import "sync"

// LanguageAuto is the sentinel stored for participants that did not declare
// a language. Translation treats it as "detect the source language".
const LanguageAuto = "auto"

// Participant is one user's presence record within a room.
type Participant struct {
	UserID      string
	ConnID      string
	DisplayName string
	Language    string
}

type room struct {
	// roomType is set by the first joiner that supplies one and sticky for
	// the room's lifetime.
	roomType     string
	participants map[string]*Participant
}

// Registry maps roomID -> userID -> Participant. The zero value is not
// usable; construct with New.
type Registry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func New() *Registry {
	return &Registry{rooms: make(map[string]*room)}
}

func (r *Registry) ensureLocked(roomID string) *room {
	rm, ok := r.rooms[roomID]
	if !ok {
		rm = &room{participants: make(map[string]*Participant)}
		r.rooms[roomID] = rm
	}
	return rm
}

// Ensure creates the room if it does not exist yet. Idempotent and
// side-effect-free when the room is already present.
func (r *Registry) Ensure(roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ensureLocked(roomID)
}

// JoinResult reports what Join observed atomically: the connection id that
// previously represented the user (empty on a first join) and the room's
// sticky type after the join.
type JoinResult struct {
	PrevConnID string
	RoomType   string
}

// Join inserts or overwrites the participant for userID. The connection id
// is replaced unconditionally; a reconnect is simply the last writer
// winning. Join does not deduplicate by connection id: if another userID
// already claimed connID, both entries remain.
func (r *Registry) Join(roomID, userID, connID, displayName, language, roomType string) JoinResult {
	if language == "" {
		language = LanguageAuto
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rm := r.ensureLocked(roomID)
	if rm.roomType == "" {
		rm.roomType = roomType
	}

	var prev string
	if p, ok := rm.participants[userID]; ok {
		prev = p.ConnID
	}
	rm.participants[userID] = &Participant{
		UserID:      userID,
		ConnID:      connID,
		DisplayName: displayName,
		Language:    language,
	}
	return JoinResult{PrevConnID: prev, RoomType: rm.roomType}
}

// Leave removes the participant. It reports whether a participant was
// actually removed and whether the room became empty (and was therefore
// deleted). Unknown room or user is a benign no-op.
func (r *Registry) Leave(roomID, userID string) (removed, becameEmpty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false, false
	}
	if _, ok := rm.participants[userID]; !ok {
		return false, false
	}
	delete(rm.participants, userID)
	if len(rm.participants) == 0 {
		delete(r.rooms, roomID)
		return true, true
	}
	return true, false
}

// Others returns a snapshot of all participants except exceptUserID.
// Iteration order is unspecified. An absent room yields an empty slice.
func (r *Registry) Others(roomID, exceptUserID string) []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil
	}
	others := make([]Participant, 0, len(rm.participants))
	for id, p := range rm.participants {
		if id == exceptUserID {
			continue
		}
		others = append(others, *p)
	}
	return others
}

// User returns a copy of the participant record.
func (r *Registry) User(roomID, userID string) (Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return Participant{}, false
	}
	p, ok := rm.participants[userID]
	if !ok {
		return Participant{}, false
	}
	return *p, true
}

// ConnID resolves the connection currently representing (roomID, userID).
func (r *Registry) ConnID(roomID, userID string) (string, bool) {
	p, ok := r.User(roomID, userID)
	if !ok {
		return "", false
	}
	return p.ConnID, true
}

// UpdateLanguage mutates only the participant's language, preserving all
// other fields. Reports false when the room or user is absent.
func (r *Registry) UpdateLanguage(roomID, userID, language string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false
	}
	p, ok := rm.participants[userID]
	if !ok {
		return false
	}
	p.Language = language
	return true
}

// RemoveByConn scans all rooms for a participant represented by connID and
// removes the first match, deleting the room if it becomes empty. This is
// the cleanup path for abrupt disconnects, where the caller does not know
// which room/user the dead connection belonged to.
func (r *Registry) RemoveByConn(connID string) (roomID, userID string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for rid, rm := range r.rooms {
		for uid, p := range rm.participants {
			if p.ConnID != connID {
				continue
			}
			delete(rm.participants, uid)
			if len(rm.participants) == 0 {
				delete(r.rooms, rid)
			}
			return rid, uid, true
		}
	}
	return "", "", false
}

// Check is a read-only existence/occupancy probe.
func (r *Registry) Check(roomID string) (exists bool, participants int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return false, 0
	}
	return true, len(rm.participants)
}

// Roster returns the user ids currently in the room, in unspecified order.
func (r *Registry) Roster(roomID string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[roomID]
	if !ok {
		return nil, false
	}
	ids := make([]string, 0, len(rm.participants))
	for id := range rm.participants {
		ids = append(ids, id)
	}
	return ids, true
}
