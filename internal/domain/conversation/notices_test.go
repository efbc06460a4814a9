package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJoinNames(t *testing.T) {
	cases := []struct {
		names []string
		want  string
	}{
		{nil, ""},
		{[]string{"X"}, "X"},
		{[]string{"X", "Y"}, "X and Y"},
		{[]string{"X", "Y", "Z"}, "X, Y, and Z"},
		{[]string{"W", "X", "Y", "Z"}, "W, X, Y, and Z"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, JoinNames(tc.names))
	}
}

func TestNotices(t *testing.T) {
	assert.Equal(t, "alice added bob and carol to the conversation.", AddedNotice("alice", []string{"bob", "carol"}))
	assert.Equal(t, "X removed Y from the conversation.", RemovedNotice("X", "Y"))
	assert.Equal(t, "X left the conversation.", LeftNotice("X"))

	assert.Equal(t, `alice named the group "Leg Day Crew".`, RenameNotice("alice", Rename{New: "Leg Day Crew"}))
	assert.Equal(t, `alice removed the group name (was "Leg Day Crew").`, RenameNotice("alice", Rename{Old: "Leg Day Crew"}))
	assert.Equal(t, `alice renamed the group from "A" to "B".`, RenameNotice("alice", Rename{Old: "A", New: "B"}))
	assert.Empty(t, RenameNotice("alice", Rename{Old: "A", New: "A"}))
}
