package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/curio-labs/curiobot/internal/domain"
	"github.com/curio-labs/curiobot/internal/telemetry"
)

// AnswerComposer produces a grounded answer for a question from one
// document's content.
type AnswerComposer interface {
	AnswerFromContext(ctx context.Context, question, docContent string) (string, error)
}

// TicketFiler files an escalation ticket for questions the knowledge base
// cannot answer and returns a link the user can follow.
type TicketFiler interface {
	FileTicket(ctx context.Context, summary, description string) (string, error)
}

// Messenger sends replies back to the channel a query came from.
type Messenger interface {
	// UserName resolves a user ID to a display name. Implementations fall
	// back to the raw ID when resolution fails.
	UserName(ctx context.Context, userID string) string
	Reply(ctx context.Context, q *domain.Query, text string) error
}

const (
	replyPreamble   = "Hi {name};\nThank you for reaching out with your query. Here's what I found:\n\n"
	replyPostamble  = "\n\nFor further details; please visit the link = {url}."
	replyTicketBody = "Hi {name};\n\n Thank you for bringing this to our attention. We've logged a Jira ticket to address your query. You can track the progress and updates on the following link = {ticketLink}."
)

// Answerer resolves a single query end to end: match it against the
// knowledge base, compose a grounded answer on a hit, or file a ticket and
// tell the user on a miss.
type Answerer struct {
	matcher  *Matcher
	composer AnswerComposer
	tickets  TicketFiler
}

func NewAnswerer(matcher *Matcher, composer AnswerComposer, tickets TicketFiler) *Answerer {
	return &Answerer{matcher: matcher, composer: composer, tickets: tickets}
}

// Resolve returns the reply text for a query whose Vector has already been
// populated (nil when embedding failed). Composition failures degrade to the
// ticket path so the user always gets a response.
func (a *Answerer) Resolve(ctx context.Context, q *domain.Query, userName string) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "Answerer.Resolve", telemetry.SpanAttributes{
		Channel:   q.Channel,
		Operation: "resolve",
	})
	defer span.End()

	match, err := a.matcher.Match(ctx, q.Vector)
	if err != nil {
		return "", fmt.Errorf("failed to match query: %w", err)
	}

	if match.Matched {
		answer, err := a.composer.AnswerFromContext(ctx, q.Text, match.Document.Content)
		if err == nil {
			return a.renderAnswer(userName, answer, match.Document.URL), nil
		}
		telemetry.CaptureError(ctx, err)
	}

	// The query text serves as both summary and description.
	link, err := a.tickets.FileTicket(ctx, q.Text, q.Text)
	if err != nil {
		return "", fmt.Errorf("failed to file ticket: %w", err)
	}
	return a.renderTicket(userName, link), nil
}

func (a *Answerer) renderAnswer(name, answer, url string) string {
	text := strings.ReplaceAll(replyPreamble, "{name}", name)
	text += answer
	text += strings.ReplaceAll(replyPostamble, "{url}", url)
	return text
}

func (a *Answerer) renderTicket(name, link string) string {
	text := strings.ReplaceAll(replyTicketBody, "{name}", name)
	return strings.ReplaceAll(text, "{ticketLink}", link)
}
