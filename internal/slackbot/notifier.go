// Package slackbot sends ops notifications to Slack and receives the
// interactive responses. All sends are best-effort: a Slack outage never
// blocks the lifecycle.
package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/crafted/backend/internal/models"
)

// Action IDs carried by the interactive buttons.
const (
	ActionApproveTask     = "approve_task"
	ActionRequestRevision = "request_revision"
)

// API is the slice of the Slack client the notifier uses; *slack.Client
// satisfies it.
type API interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Notifier posts Block Kit messages to the admin channel.
type Notifier struct {
	Client  API
	Channel string
	Logger  *slog.Logger
}

func NewNotifier(client API, channel string, logger *slog.Logger) *Notifier {
	return &Notifier{Client: client, Channel: channel, Logger: logger}
}

// TaskReadyForReview announces a submitted deliverable with Approve /
// Request revision buttons. The task ID rides in the button values so the
// interaction handler can act without any session state.
func (n *Notifier) TaskReadyForReview(ctx context.Context, task *models.Task, freelancer *models.User) error {
	header := slack.NewSectionBlock(
		slack.NewTextBlockObject(slack.MarkdownType,
			fmt.Sprintf("*%s* is ready for review\nFreelancer: %s · Credits: %d · Revisions used: %d/%d",
				task.Title, freelancer.DisplayName, task.CreditsRequired, task.RevisionsUsed, task.MaxRevisions),
			false, false),
		nil, nil,
	)
	approve := slack.NewButtonBlockElement(ActionApproveTask, task.ID.String(),
		slack.NewTextBlockObject(slack.PlainTextType, "Approve", false, false))
	approve.Style = slack.StylePrimary
	revise := slack.NewButtonBlockElement(ActionRequestRevision, task.ID.String(),
		slack.NewTextBlockObject(slack.PlainTextType, "Request revision", false, false))
	revise.Style = slack.StyleDanger
	actions := slack.NewActionBlock("task_review", approve, revise)

	_, _, err := n.Client.PostMessageContext(ctx, n.Channel,
		slack.MsgOptionBlocks(header, actions),
		slack.MsgOptionText(fmt.Sprintf("%s is ready for review", task.Title), false),
	)
	if err != nil {
		return fmt.Errorf("post review notification: %w", err)
	}
	return nil
}

// TaskFlagged warns ops that the classifier raised safety flags on a brief.
func (n *Notifier) TaskFlagged(ctx context.Context, task *models.Task, flags []string) error {
	text := fmt.Sprintf(":warning: *%s* was flagged by the classifier: %s\nCategory: %s · Task ID: `%s`",
		task.Title, strings.Join(flags, ", "), task.Category, task.ID)
	_, _, err := n.Client.PostMessageContext(ctx, n.Channel,
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)),
		slack.MsgOptionText("Task flagged", false),
	)
	if err != nil {
		return fmt.Errorf("post flag notification: %w", err)
	}
	return nil
}

// PayoutRequested announces a new payout so ops can watch the transfer land.
func (n *Notifier) PayoutRequested(ctx context.Context, payout *models.Payout, freelancer *models.User) error {
	text := fmt.Sprintf("*Payout requested* by %s\n%d credits → $%.2f net ($%.2f gross, $%.2f fee)",
		freelancer.DisplayName, payout.Credits,
		float64(payout.NetCents)/100, float64(payout.GrossCents)/100, float64(payout.FeeCents)/100)
	_, _, err := n.Client.PostMessageContext(ctx, n.Channel,
		slack.MsgOptionBlocks(slack.NewSectionBlock(
			slack.NewTextBlockObject(slack.MarkdownType, text, false, false), nil, nil)),
		slack.MsgOptionText("Payout requested", false),
	)
	if err != nil {
		return fmt.Errorf("post payout notification: %w", err)
	}
	return nil
}
