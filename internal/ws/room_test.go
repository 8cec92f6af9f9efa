package ws

import "testing"

func TestRoomKeySymmetric(t *testing.T) {
	cases := []struct {
		a, b string
		want string
	}{
		{"1", "2", "1-2"},
		{"2", "1", "1-2"},
		{"alice", "bob", "alice-bob"},
		{"bob", "alice", "alice-bob"},
		// lexicographic, not numeric
		{"10", "2", "10-2"},
		{"7", "7", "7-7"},
	}

	for _, tc := range cases {
		if got := RoomKey(tc.a, tc.b); got != tc.want {
			t.Errorf("RoomKey(%q, %q) = %q, want %q", tc.a, tc.b, got, tc.want)
		}
		if RoomKey(tc.a, tc.b) != RoomKey(tc.b, tc.a) {
			t.Errorf("RoomKey(%q, %q) not commutative", tc.a, tc.b)
		}
	}
}
