package slackbot

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/slack-go/slack"

	"github.com/crafted/backend/internal/models"
)

type mockSlackAPI struct {
	channels []string
	optCount []int
	err      error
}

func (m *mockSlackAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	if m.err != nil {
		return "", "", m.err
	}
	m.channels = append(m.channels, channelID)
	m.optCount = append(m.optCount, len(options))
	return channelID, "1724871600.000100", nil
}

func TestTaskReadyForReviewPostsToAdminChannel(t *testing.T) {
	api := &mockSlackAPI{}
	n := NewNotifier(api, "#crafted-ops", slog.New(slog.DiscardHandler))

	task := &models.Task{ID: uuid.New(), Title: "Landing page hero", CreditsRequired: 10, MaxRevisions: 2}
	freelancer := &models.User{ID: uuid.New(), DisplayName: "Ada"}

	if err := n.TaskReadyForReview(context.Background(), task, freelancer); err != nil {
		t.Fatalf("TaskReadyForReview: %v", err)
	}
	if len(api.channels) != 1 || api.channels[0] != "#crafted-ops" {
		t.Errorf("channels = %v", api.channels)
	}
}

func TestNotifierSurfacesSendErrors(t *testing.T) {
	api := &mockSlackAPI{err: fmt.Errorf("channel_not_found")}
	n := NewNotifier(api, "#missing", slog.New(slog.DiscardHandler))

	payout := &models.Payout{ID: uuid.New(), Credits: 10, GrossCents: 10000, NetCents: 7000, FeeCents: 3000}
	if err := n.PayoutRequested(context.Background(), payout, &models.User{DisplayName: "Ada"}); err == nil {
		t.Fatal("want error when Slack send fails")
	}
}
