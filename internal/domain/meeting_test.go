package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMeetingOccupants(t *testing.T) {
	m := NewMeeting("")

	added := m.AddOccupantNames("alice", "bob", "alice")
	assert.Equal(t, []string{"alice", "bob"}, added)
	assert.Empty(t, m.AddOccupantNames("bob"))

	assert.True(t, m.RemoveOccupantName("bob"))
	assert.False(t, m.RemoveOccupantName("bob"))

	assert.Equal(t, []string{"alice"}, m.OccupantNames())
	assert.Equal(t, []string{"alice", "bob"}, m.HistoricalOccupantNames())
	assert.True(t, m.WasOccupant("bob"))
}

func TestMeetingModerationToggleCreatesFreshState(t *testing.T) {
	m := NewMeeting("")
	assert.False(t, m.Moderated())

	assert.True(t, m.SetModerated(true))
	m.ModerationState().AddModerator("alice")
	assert.False(t, m.SetModerated(true))
	assert.True(t, m.ModerationState().IsModerator("alice"))

	assert.True(t, m.SetModerated(false))
	assert.Nil(t, m.ModerationState())

	m.SetModerated(true)
	assert.False(t, m.ModerationState().IsModerator("alice"))
}

func TestMeetingInfo(t *testing.T) {
	m := NewMeeting("tag:nextthought.com,2011-10:Section")
	m.ID = "room-1"
	m.Creator = "alice"
	m.AddOccupantNames("alice", "bob")
	m.SetActive(true)
	m.SetModerated(true)
	m.ModerationState().AddModerator("alice")

	info := m.Info()
	assert.Equal(t, "room-1", info.ID)
	assert.True(t, info.Active)
	assert.True(t, info.Moderated)
	assert.Equal(t, []string{"alice"}, info.Moderators)
	assert.Equal(t, []string{"alice", "bob"}, info.Occupants)
}

func TestMeetingGrant(t *testing.T) {
	m := NewMeeting("")
	m.Grant("alice", ActionEnter, ActionEnter, ActionModerate)

	assert.True(t, m.HasGrant("alice", ActionEnter))
	assert.True(t, m.HasGrant("alice", ActionModerate))
	assert.False(t, m.HasGrant("bob", ActionEnter))
	assert.Len(t, m.acl, 2)
}

func TestRoomSpecOccupantsJSON(t *testing.T) {
	var spec RoomSpec
	require.NoError(t, json.Unmarshal([]byte(`{"occupants": ["alice", ["bob", "s2"]]}`), &spec))

	require.Len(t, spec.Occupants, 2)
	assert.Equal(t, OccupantRef{Username: "alice"}, spec.Occupants[0])
	assert.Equal(t, OccupantRef{Username: "bob", SessionID: "s2"}, spec.Occupants[1])

	spec.WithoutOccupant("alice")
	assert.Equal(t, []string{"bob"}, spec.OccupantNames())

	var bad RoomSpec
	assert.Error(t, json.Unmarshal([]byte(`{"occupants": [["a", "b", "c"]]}`), &bad))
}
