package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/slack-go/slack"

	"iqaudit/internal/history"
)

// SlackNotifier sends notifications to Slack via a Webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the run summary to the configured webhook.
func (s *SlackNotifier) Notify(ctx context.Context, run history.Run) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	msg := &slack.WebhookMessage{
		Text:        Summary(run),
		Attachments: []slack.Attachment{attachment(run)},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, msg); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}

// SlackBotNotifier posts with a bot token to a channel.
type SlackBotNotifier struct {
	client  *slack.Client
	channel string
}

// NewSlackBotNotifier creates a bot-token notifier. Options are passed to the
// slack client (e.g. slack.OptionAPIURL in tests).
func NewSlackBotNotifier(token, channel string, opts ...slack.Option) *SlackBotNotifier {
	return &SlackBotNotifier{
		client:  slack.New(token, opts...),
		channel: channel,
	}
}

func (s *SlackBotNotifier) Notify(ctx context.Context, run history.Run) error {
	if s.channel == "" {
		return fmt.Errorf("slack channel is not configured")
	}

	_, _, err := s.client.PostMessageContext(ctx, s.channel,
		slack.MsgOptionText(Summary(run), false),
		slack.MsgOptionAttachments(attachment(run)),
	)
	if err != nil {
		return fmt.Errorf("failed to post slack message: %w", err)
	}
	return nil
}

func attachment(run history.Run) slack.Attachment {
	fields := []slack.AttachmentField{
		{Title: "Application", Value: run.PublicAppID, Short: true},
		{Title: "Stage", Value: run.Stage, Short: true},
		{Title: "Dependencies", Value: strconv.Itoa(run.Components), Short: true},
		{Title: "Outcome", Value: run.Outcome, Short: true},
	}
	if run.PolicyAction != "" {
		fields = append(fields, slack.AttachmentField{Title: "Policy action", Value: run.PolicyAction, Short: true})
	}

	return slack.Attachment{
		Color:     color(run),
		Title:     "IQ policy evaluation",
		TitleLink: run.ReportURL,
		Text:      run.Error,
		Fields:    fields,
		Footer:    "run " + run.ID,
	}
}
