package ws

import (
	"sort"
	"strings"
)

// RoomKey derives the conversation room for two user identities. The ids are
// sorted lexicographically before joining, so either participant resolves the
// same room: RoomKey("2", "1") == RoomKey("1", "2") == "1-2".
func RoomKey(userID, otherUserID string) string {
	ids := []string{userID, otherUserID}
	sort.Strings(ids)
	return strings.Join(ids, "-")
}
