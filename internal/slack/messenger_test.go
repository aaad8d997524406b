package slack

import (
	"context"
	"errors"
	"testing"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/curio-labs/curiobot/internal/domain"
)

type MockSlackAPI struct {
	mock.Mock
}

func (m *MockSlackAPI) GetUserInfoContext(ctx context.Context, user string) (*slack.User, error) {
	args := m.Called(ctx, user)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*slack.User), args.Error(1)
}

func (m *MockSlackAPI) PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	args := m.Called(ctx, channelID)
	return args.String(0), args.String(1), args.Error(2)
}

type recordingReceiver struct {
	queries []*domain.Query
}

func (r *recordingReceiver) Enqueue(q *domain.Query) {
	r.queries = append(r.queries, q)
}

func messageEvent(channel, botID, text, user, ts string) *slackevents.EventsAPIEvent {
	return &slackevents.EventsAPIEvent{
		Type: slackevents.CallbackEvent,
		InnerEvent: slackevents.EventsAPIInnerEvent{
			Data: &slackevents.MessageEvent{
				Channel:   channel,
				BotID:     botID,
				Text:      text,
				User:      user,
				TimeStamp: ts,
			},
		},
	}
}

func TestMessenger_HandleEvent_EnqueuesChannelMessage(t *testing.T) {
	receiver := &recordingReceiver{}
	m := &Messenger{targetChannel: "C123", receiver: receiver}

	m.handleEvent(messageEvent("C123", "", "how do I reset?", "U42", "1700000000.000100"))

	require.Len(t, receiver.queries, 1)
	q := receiver.queries[0]
	assert.Equal(t, "how do I reset?", q.Text)
	assert.Equal(t, "C123", q.Channel)
	assert.Equal(t, "U42", q.UserID)
	assert.Equal(t, "1700000000.000100", q.ThreadRef)
}

func TestMessenger_HandleEvent_Filters(t *testing.T) {
	receiver := &recordingReceiver{}
	m := &Messenger{targetChannel: "C123", receiver: receiver}

	m.handleEvent(messageEvent("C999", "", "wrong channel", "U42", "1"))
	m.handleEvent(messageEvent("C123", "B07", "bot message", "U42", "2"))
	m.handleEvent(messageEvent("C123", "", "", "U42", "3"))

	assert.Empty(t, receiver.queries)
}

func TestMessenger_UserName(t *testing.T) {
	api := new(MockSlackAPI)
	m := &Messenger{api: api}

	api.On("GetUserInfoContext", mock.Anything, "U1").
		Return(&slack.User{Name: "dworkin", RealName: "Dana Worth"}, nil)
	api.On("GetUserInfoContext", mock.Anything, "U2").
		Return(&slack.User{Name: "dworkin"}, nil)
	api.On("GetUserInfoContext", mock.Anything, "U3").
		Return(nil, errors.New("user_not_found"))

	ctx := context.Background()
	assert.Equal(t, "Dana Worth", m.UserName(ctx, "U1"))
	assert.Equal(t, "dworkin", m.UserName(ctx, "U2"))
	assert.Equal(t, fallbackName, m.UserName(ctx, "U3"))
}

func TestMessenger_Reply(t *testing.T) {
	api := new(MockSlackAPI)
	m := &Messenger{api: api}

	api.On("PostMessageContext", mock.Anything, "C123").Return("C123", "1700000000.000200", nil)

	q := &domain.Query{Channel: "C123", ThreadRef: "1700000000.000100"}
	err := m.Reply(context.Background(), q, "here is your answer")

	require.NoError(t, err)
	api.AssertNumberOfCalls(t, "PostMessageContext", 1)
}

func TestMessenger_Reply_PostFailure(t *testing.T) {
	api := new(MockSlackAPI)
	m := &Messenger{api: api}

	api.On("PostMessageContext", mock.Anything, "C123").Return("", "", errors.New("channel_not_found"))

	err := m.Reply(context.Background(), &domain.Query{Channel: "C123"}, "text")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to post reply")
}
