package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chatserver/internal/domain"
	apperrors "chatserver/pkg/errors"
)

const pinnedContent = "tag:nextthought.com,2011-10:MN-HTML-Sample.0"

func TestModeratedDefaultIsHeldUntilApproved(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")
	ctx := context.Background()

	msg, result, err := ts.post(m.ID, "bob", domain.ChannelDefault, domain.TextBody("hi"))
	require.NoError(t, err)

	assert.Equal(t, PostQueued, result)
	assert.Equal(t, domain.StatusPending, msg.Status)
	assert.True(t, msg.Stored())
	assert.True(t, m.ModerationState().IsPending(msg.MessageID))
	assert.Empty(t, ts.received("bob", domain.EventRecvMessage))
	assert.Empty(t, ts.received("alice", domain.EventRecvMessage))
	assert.Len(t, ts.received("alice", domain.EventRecvMessageForModeration), 1)
	assert.Empty(t, ts.received("bob", domain.EventRecvMessageForModeration))
	assert.Zero(t, m.MessageCount)

	held := ts.notifier.OfType(domain.MeetingMessageHeld)
	require.Len(t, held, 1)
	require.NotNil(t, held[0].Pending)
	assert.Equal(t, msg.ID, held[0].Pending.StoreID)

	// одобрять может только модератор
	result, err = ts.server.ApproveMessage(ctx, m.ID, "bob", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, PostRejected, result)

	result, err = ts.server.ApproveMessage(ctx, m.ID, "alice", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, PostCounted, result)
	assert.Equal(t, 1, m.MessageCount)
	assert.False(t, m.ModerationState().IsPending(msg.MessageID))

	for _, name := range []string{"alice", "bob"} {
		got := ts.received(name, domain.EventRecvMessage)
		require.Len(t, got, 1, name)
		assert.Equal(t, domain.StatusPosted, got[0].Status)
		assert.Equal(t, msg.MessageID, got[0].MessageID)
	}
	assert.Equal(t, 1, ts.store.updates)
	assert.Len(t, ts.notifier.OfType(domain.MeetingMessageApproved), 1)

	// повторное одобрение ничего не доставляет
	result, err = ts.server.ApproveMessage(ctx, m.ID, "alice", msg.MessageID)
	require.NoError(t, err)
	assert.Equal(t, PostRejected, result)
	assert.Len(t, ts.received("bob", domain.EventRecvMessage), 1)
	assert.Equal(t, 1, m.MessageCount)
}

func TestModeratedDefaultSizeCheck(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")

	_, result, err := ts.post(m.ID, "bob", domain.ChannelDefault, domain.TextBody(strings.Repeat("x", 1025)))
	assert.True(t, errors.Is(err, apperrors.ErrMessageTooBig))
	assert.Equal(t, PostRejected, result)
	assert.Zero(t, ts.store.Len())
	assert.Zero(t, m.ModerationState().PendingCount())
}

func TestModeratedDuplicatePendingIsRefused(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")

	first := &domain.Message{MessageID: "m-1", Sender: "bob", Body: domain.TextBody("one")}
	result, err := ts.server.PostMessageToRoom(context.Background(), m.ID, first)
	require.NoError(t, err)
	require.Equal(t, PostQueued, result)

	again := &domain.Message{MessageID: "m-1", Sender: "bob", Body: domain.TextBody("two")}
	result, err = ts.server.PostMessageToRoom(context.Background(), m.ID, again)
	assert.True(t, errors.Is(err, apperrors.ErrDuplicatePending))
	assert.Equal(t, PostRejected, result)
	assert.Equal(t, 1, m.ModerationState().PendingCount())
}

func TestModeratedPolicyRefusesMessageWithoutID(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")
	policy := ts.server.(*chatserver).policyFor(m)

	m.Lock()
	result, err := policy.PostMessage(context.Background(), &domain.Message{
		Sender:  "bob",
		Channel: domain.ChannelDefault,
		Body:    domain.TextBody("anonymous"),
	})
	m.Unlock()

	require.NoError(t, err)
	assert.Equal(t, PostRejected, result)
	assert.Zero(t, m.ModerationState().PendingCount())
	assert.Zero(t, ts.store.Len())
}

func TestModeratorBypassesQueue(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob", "carol")

	msg, result, err := ts.post(m.ID, "alice", domain.ChannelDefault, domain.TextBody("welcome"))
	require.NoError(t, err)
	assert.Equal(t, PostCounted, result)
	assert.Equal(t, domain.StatusPosted, msg.Status)
	for _, name := range []string{"alice", "bob", "carol"} {
		assert.Len(t, ts.received(name, domain.EventRecvMessage), 1, name)
	}
	assert.Zero(t, m.ModerationState().PendingCount())

	_, _, err = ts.post(m.ID, "alice", domain.ChannelDefault, domain.TextBody(strings.Repeat("x", 2000)))
	assert.True(t, errors.Is(err, apperrors.ErrMessageTooBig))
}

func TestModeratedStateIsSuppressed(t *testing.T) {
	for _, sender := range []string{"alice", "bob"} {
		t.Run(sender, func(t *testing.T) {
			ts := newTestServer(t)
			m := ts.moderatedRoom("alice", "bob")

			_, result, err := ts.post(m.ID, sender, domain.ChannelState, domain.FieldsBody(map[string]string{"state": "active"}))
			require.NoError(t, err)
			assert.Equal(t, PostSuppressed, result)
			assert.True(t, result.Ok())
			assert.Empty(t, ts.received("alice", domain.EventRecvMessage))
			assert.Empty(t, ts.received("bob", domain.EventRecvMessage))
		})
	}
}

func TestModeratedWhisper(t *testing.T) {
	tests := []struct {
		name       string
		occupants  []string
		sender     string
		recipients []string
		want       PostResult
		delivered  []string
		notified   []string
	}{
		{
			name:       "one on one with moderator present",
			occupants:  []string{"alice", "bob", "carol"},
			sender:     "bob",
			recipients: []string{"carol"},
			want:       PostDelivered,
			delivered:  []string{"bob", "carol"},
			notified:   []string{"alice"},
		},
		{
			name:       "only moderator and one user",
			occupants:  []string{"alice", "bob"},
			sender:     "bob",
			recipients: []string{"alice"},
			want:       PostDelivered,
			delivered:  []string{"alice", "bob"},
		},
		{
			name:       "to moderators only",
			occupants:  []string{"alice", "bob", "carol", "dave"},
			sender:     "bob",
			recipients: []string{"alice"},
			want:       PostDelivered,
			delivered:  []string{"alice", "bob"},
			notified:   []string{"carol", "dave"},
		},
		{
			name:       "everyone but moderators becomes held broadcast",
			occupants:  []string{"alice", "bob", "carol", "dave"},
			sender:     "bob",
			recipients: []string{"carol", "dave"},
			want:       PostQueued,
			notified:   []string{"bob", "carol", "dave"},
		},
		{
			name:       "two users including a moderator is refused",
			occupants:  []string{"alice", "bob", "carol", "dave"},
			sender:     "bob",
			recipients: []string{"alice", "carol"},
			want:       PostRejected,
			notified:   []string{"alice", "bob", "carol", "dave"},
		},
		{
			name:       "no recipients is held like default",
			occupants:  []string{"alice", "bob"},
			sender:     "bob",
			recipients: nil,
			want:       PostQueued,
			notified:   []string{"alice", "bob"},
		},
		{
			name:       "moderator whispers freely",
			occupants:  []string{"alice", "bob", "carol", "dave"},
			sender:     "alice",
			recipients: []string{"bob", "carol"},
			want:       PostDelivered,
			delivered:  []string{"alice", "bob", "carol"},
			notified:   []string{"dave"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			m := ts.moderatedRoom(tt.occupants...)

			msg, result, err := ts.post(m.ID, tt.sender, domain.ChannelWhisper, domain.TextBody("psst"), tt.recipients...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)

			for _, name := range tt.delivered {
				assert.Len(t, ts.received(name, domain.EventRecvMessage), 1, name)
			}
			for _, name := range tt.notified {
				assert.Empty(t, ts.received(name, domain.EventRecvMessage), name)
			}
			if tt.want == PostQueued {
				assert.Equal(t, domain.ChannelDefault, msg.Channel)
				assert.True(t, m.ModerationState().IsPending(msg.MessageID))
			}
			assert.Zero(t, m.MessageCount)
		})
	}
}

func TestShadowedWhisperIsCopiedToModerators(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob", "carol")
	require.True(t, ts.server.ShadowUsers(context.Background(), m.ID, "alice", []string{"carol"}))

	msg, result, err := ts.post(m.ID, "bob", domain.ChannelWhisper, domain.TextBody("psst"), "carol")
	require.NoError(t, err)
	assert.Equal(t, PostDelivered, result)
	assert.Equal(t, domain.StatusPosted, msg.Status)

	shadows := ts.received("alice", domain.EventRecvMessageForShadow)
	require.Len(t, shadows, 1)
	assert.Equal(t, domain.StatusShadowed, shadows[0].Status)
	assert.NotEqual(t, msg.ID, shadows[0].ID)
	assert.Empty(t, ts.received("alice", domain.EventRecvMessage))
	assert.Empty(t, ts.received("bob", domain.EventRecvMessageForShadow))

	assert.Len(t, ts.store.WithStatus(domain.StatusShadowed), 1)
	assert.Len(t, ts.notifier.OfType(domain.MeetingMessageShadowed), 1)
	assert.Zero(t, m.MessageCount)
}

func TestUnshadowedWhisperIsNotCopied(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob", "carol")

	_, result, err := ts.post(m.ID, "bob", domain.ChannelWhisper, domain.TextBody("psst"), "carol")
	require.NoError(t, err)
	assert.Equal(t, PostDelivered, result)
	assert.Empty(t, ts.received("alice", domain.EventRecvMessageForShadow))
}

func TestModeratedContentChannel(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		body   domain.Body
		want   PostResult
	}{
		{"moderator with valid id", "alice", domain.FieldsBody(map[string]string{"ntiid": pinnedContent, "junk": "x"}), PostCounted},
		{"moderator with invalid id", "alice", domain.FieldsBody(map[string]string{"ntiid": "not-an-id"}), PostRejected},
		{"moderator without id", "alice", domain.TextBody("hello"), PostRejected},
		{"non-moderator", "bob", domain.FieldsBody(map[string]string{"ntiid": pinnedContent}), PostRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			m := ts.moderatedRoom("alice", "bob", "carol")

			msg, result, err := ts.post(m.ID, tt.sender, domain.ChannelContent, tt.body, "bob")
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)

			if tt.want == PostCounted {
				assert.Nil(t, msg.Recipients)
				assert.Equal(t, map[string]string{"ntiid": pinnedContent}, msg.Body.Fields)
				for _, name := range []string{"alice", "bob", "carol"} {
					assert.Len(t, ts.received(name, domain.EventRecvMessage), 1, name)
				}
			} else {
				assert.Empty(t, ts.received("carol", domain.EventRecvMessage))
			}
		})
	}
}

func TestModeratedMetaChannel(t *testing.T) {
	tests := []struct {
		name   string
		sender string
		fields map[string]string
		want   PostResult
	}{
		{"pin", "alice", map[string]string{"channel": "CONTENT", "action": "pin", "ntiid": pinnedContent}, PostCounted},
		{"pin without id", "alice", map[string]string{"channel": "CONTENT", "action": "pin"}, PostRejected},
		{"clear pinned", "alice", map[string]string{"channel": "CONTENT", "action": "clearPinned"}, PostCounted},
		{"unknown action", "alice", map[string]string{"channel": "CONTENT", "action": "shout"}, PostRejected},
		{"unknown channel", "alice", map[string]string{"channel": "RADIO", "action": "clearPinned"}, PostRejected},
		{"non-moderator", "bob", map[string]string{"channel": "CONTENT", "action": "clearPinned"}, PostRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			m := ts.moderatedRoom("alice", "bob")

			_, result, err := ts.post(m.ID, tt.sender, domain.ChannelMeta, domain.FieldsBody(tt.fields))
			require.NoError(t, err)
			assert.Equal(t, tt.want, result)
			if tt.want.Ok() {
				assert.Len(t, ts.received("bob", domain.EventRecvMessage), 1)
			} else {
				assert.Empty(t, ts.received("bob", domain.EventRecvMessage))
			}
		})
	}
}

func TestModeratedPollChannel(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob", "carol")

	question, result, err := ts.post(m.ID, "alice", domain.ChannelPoll, domain.FieldsBody(map[string]string{"question": "2+2?"}), "bob")
	require.NoError(t, err)
	assert.Equal(t, PostCounted, result)
	assert.Nil(t, question.Recipients)
	assert.Len(t, ts.received("carol", domain.EventRecvMessage), 1)
	ts.resetEmitters()

	answer := &domain.Message{
		Sender:     "bob",
		Channel:    domain.ChannelPoll,
		Body:       domain.FieldsBody(map[string]string{"answer": "4"}),
		Recipients: []string{"carol"},
		InReplyTo:  question.MessageID,
	}
	result, err = ts.server.PostMessageToRoom(context.Background(), m.ID, answer)
	require.NoError(t, err)
	assert.Equal(t, PostDelivered, result)
	assert.Equal(t, []string{"alice"}, answer.Recipients)
	assert.Len(t, ts.received("alice", domain.EventRecvMessage), 1)
	assert.Empty(t, ts.received("carol", domain.EventRecvMessage))

	_, result, err = ts.post(m.ID, "bob", domain.ChannelPoll, domain.FieldsBody(map[string]string{"answer": "5"}))
	require.NoError(t, err)
	assert.Equal(t, PostRejected, result, "answers need in_reply_to")
}

func TestAddModeratorIsIdempotent(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")

	m.Lock()
	policy := newPostPolicy(m, ts.server.(*chatserver).deps)
	assert.False(t, policy.AddModerator("alice"))
	assert.True(t, policy.AddModerator("bob"))
	assert.False(t, policy.AddModerator("bob"))
	m.Unlock()

	assert.Equal(t, []string{"alice", "bob"}, m.ModerationState().ModeratorNames())
	assert.Len(t, ts.emitters["alice"].Named(domain.EventRoomModerationChanged), 3)
}

func TestApprovedMessageFailsWhenStoreLosesIt(t *testing.T) {
	ts := newTestServer(t)
	m := ts.moderatedRoom("alice", "bob")

	msg, _, err := ts.post(m.ID, "bob", domain.ChannelDefault, domain.TextBody("hi"))
	require.NoError(t, err)

	ts.store.mu.Lock()
	delete(ts.store.messages, msg.ID)
	ts.store.mu.Unlock()

	result, err := ts.server.ApproveMessage(context.Background(), m.ID, "alice", msg.MessageID)
	assert.True(t, errors.Is(err, apperrors.ErrMessageNotFound))
	assert.Equal(t, PostRejected, result)
	assert.Empty(t, ts.received("bob", domain.EventRecvMessage))
}
