package room

import (
	"sort"
	"testing"
)

func membersOf(r *Router, roomID string) []string {
	var out []string
	for connID := range r.Members(roomID) {
		out = append(out, connID)
	}
	sort.Strings(out)
	return out
}

func TestJoinCreatesRoomLazily(t *testing.T) {
	r := NewRouter()

	got := r.Join("conn-1", "general")
	if got != "general" {
		t.Errorf("Join returned %q, want %q", got, "general")
	}
	if members := membersOf(r, "general"); len(members) != 1 || members[0] != "conn-1" {
		t.Errorf("Members = %v", members)
	}
}

func TestJoinTwiceIsNoOp(t *testing.T) {
	r := NewRouter()

	r.Join("conn-1", "general")
	r.Join("conn-1", "general")

	if got := r.MemberCount("general"); got != 1 {
		t.Errorf("MemberCount = %d, want 1", got)
	}
}

func TestLeaveNonMemberIsNoOp(t *testing.T) {
	r := NewRouter()

	r.Leave("conn-1", "general")
	r.Join("conn-1", "general")
	r.Leave("conn-2", "general")

	if got := r.MemberCount("general"); got != 1 {
		t.Errorf("MemberCount = %d, want 1", got)
	}
}

func TestEmptyRoomEvictedAndRecreated(t *testing.T) {
	r := NewRouter()

	r.Join("conn-1", "general")
	r.Leave("conn-1", "general")

	// Emitting to the evicted room yields nothing; not an error.
	if members := membersOf(r, "general"); members != nil {
		t.Errorf("Members of evicted room = %v, want none", members)
	}

	// Next join recreates it transparently.
	r.Join("conn-2", "general")
	if members := membersOf(r, "general"); len(members) != 1 || members[0] != "conn-2" {
		t.Errorf("Members = %v", members)
	}
}

func TestMembersUnknownRoomIsEmpty(t *testing.T) {
	r := NewRouter()

	if members := membersOf(r, "nowhere"); members != nil {
		t.Errorf("Members = %v, want none", members)
	}
}

func TestMembersSequenceIsRestartable(t *testing.T) {
	r := NewRouter()
	r.Join("conn-1", "general")
	r.Join("conn-2", "general")

	seq := r.Members("general")

	first := 0
	for range seq {
		first++
	}
	second := 0
	for range seq {
		second++
	}
	if first != 2 || second != 2 {
		t.Errorf("Restarted sequence yielded %d then %d, want 2 and 2", first, second)
	}
}

func TestMembersSequenceStopsEarly(t *testing.T) {
	r := NewRouter()
	r.Join("conn-1", "general")
	r.Join("conn-2", "general")

	count := 0
	for range r.Members("general") {
		count++
		break
	}
	if count != 1 {
		t.Errorf("Yielded %d members after break, want 1", count)
	}
}

func TestRemoveConnectionClearsAllRooms(t *testing.T) {
	r := NewRouter()

	r.Join("conn-1", "general")
	r.Join("conn-1", "random")
	r.Join("conn-2", "general")

	r.RemoveConnection("conn-1")

	if members := membersOf(r, "general"); len(members) != 1 || members[0] != "conn-2" {
		t.Errorf("general members = %v", members)
	}
	if got := r.MemberCount("random"); got != 0 {
		t.Errorf("random MemberCount = %d, want 0", got)
	}
	if rooms := r.Rooms("conn-1"); len(rooms) != 0 {
		t.Errorf("Rooms(conn-1) = %v, want none", rooms)
	}
}

func TestPersonalRoomNamespace(t *testing.T) {
	roomID := PersonalRoom("alice")
	if roomID != "user:alice" {
		t.Errorf("PersonalRoom = %q", roomID)
	}
	if !IsPersonal(roomID) {
		t.Error("Personal room should be in the reserved namespace")
	}
	if IsPersonal("general") {
		t.Error("Ad-hoc room should not be in the reserved namespace")
	}
}
