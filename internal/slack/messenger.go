// Package slack connects the bot to Slack over Socket Mode.
package slack

import (
	"context"
	"fmt"
	"log"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/curio-labs/curiobot/internal/domain"
)

// fallbackName greets users whose profile lookup failed.
const fallbackName = "there"

// QueryReceiver accepts queries lifted out of channel messages.
type QueryReceiver interface {
	Enqueue(q *domain.Query)
}

type slackAPI interface {
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Messenger listens for messages in one target channel and replies in
// thread. It implements the messenger side of query resolution.
type Messenger struct {
	api           slackAPI
	socket        *socketmode.Client
	targetChannel string
	receiver      QueryReceiver
}

// NewMessenger builds a Socket Mode messenger. botToken is the xoxb token,
// appToken the xapp token.
func NewMessenger(botToken, appToken, targetChannel string, receiver QueryReceiver) *Messenger {
	api := slack.New(botToken, slack.OptionAppLevelToken(appToken))
	return &Messenger{
		api:           api,
		socket:        socketmode.New(api),
		targetChannel: targetChannel,
		receiver:      receiver,
	}
}

// Listen runs the Socket Mode event loop until ctx is cancelled. Every
// non-bot message with text in the target channel becomes a query.
func (m *Messenger) Listen(ctx context.Context) error {
	go func() {
		for evt := range m.socket.Events {
			switch evt.Type {
			case socketmode.EventTypeConnected:
				log.Printf("slack: connected")
			case socketmode.EventTypeEventsAPI:
				payload, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok {
					continue
				}
				m.socket.Ack(*evt.Request)
				m.handleEvent(&payload)
			}
		}
	}()
	return m.socket.RunContext(ctx)
}

func (m *Messenger) handleEvent(payload *slackevents.EventsAPIEvent) {
	if payload.Type != slackevents.CallbackEvent {
		return
	}
	ev, ok := payload.InnerEvent.Data.(*slackevents.MessageEvent)
	if !ok {
		return
	}
	if ev.Channel != m.targetChannel || ev.BotID != "" || ev.Text == "" {
		return
	}

	log.Printf("slack: query received in %s", ev.Channel)
	m.receiver.Enqueue(&domain.Query{
		Text:      ev.Text,
		Channel:   ev.Channel,
		ThreadRef: ev.TimeStamp,
		UserID:    ev.User,
	})
}

// UserName resolves a user's display name, preferring the real name. Lookup
// failures fall back to a generic greeting name.
func (m *Messenger) UserName(ctx context.Context, userID string) string {
	user, err := m.api.GetUserInfoContext(ctx, userID)
	if err != nil {
		log.Printf("slack: failed to fetch user %s: %v", userID, err)
		return fallbackName
	}
	if user.RealName != "" {
		return user.RealName
	}
	if user.Name != "" {
		return user.Name
	}
	return fallbackName
}

// Reply posts the text as a threaded reply to the originating message.
func (m *Messenger) Reply(ctx context.Context, q *domain.Query, text string) error {
	_, _, err := m.api.PostMessageContext(ctx, q.Channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(q.ThreadRef),
	)
	if err != nil {
		return fmt.Errorf("failed to post reply to %s: %w", q.Channel, err)
	}
	return nil
}
