// internal/common/aws/notifier.go
package aws

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"

	"assetid-workers/internal/common/errors"
	"assetid-workers/internal/common/logger"
)

// maxReportLines caps the report excerpt carried in a notification.
const maxReportLines = 50

// RunSummary describes a finished generation run.
type RunSummary struct {
	Project   string        `json:"project"`
	RunID     string        `json:"runId"`
	Total     int           `json:"total"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Cancelled int           `json:"cancelled"`
	Warnings  int           `json:"warnings"`
	AICalls   int           `json:"aiCalls"`
	Duration  time.Duration `json:"duration"`
	Report    []string      `json:"report,omitempty"`
}

// Status is "completed", "completed_with_errors" or "cancelled".
func (s RunSummary) Status() string {
	switch {
	case s.Cancelled > 0:
		return "cancelled"
	case s.Failed > 0:
		return "completed_with_errors"
	}
	return "completed"
}

// NotifierConfig selects the channels. A nil client or empty target disables that channel.
type NotifierConfig struct {
	Publisher Publisher
	TopicARN  string
	Sender    EmailSender
	From      string
	To        []string
}

// RunNotifier publishes run summaries to SNS and emails them through SES.
type RunNotifier struct {
	cfg    NotifierConfig
	logger logger.Logger
}

func NewRunNotifier(cfg NotifierConfig, log logger.Logger) *RunNotifier {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &RunNotifier{cfg: cfg, logger: log}
}

// Enabled reports whether any channel is configured.
func (n *RunNotifier) Enabled() bool {
	return n.snsEnabled() || n.sesEnabled()
}

func (n *RunNotifier) snsEnabled() bool { return n.cfg.Publisher != nil && n.cfg.TopicARN != "" }

func (n *RunNotifier) sesEnabled() bool {
	return n.cfg.Sender != nil && n.cfg.From != "" && len(n.cfg.To) > 0
}

// Notify sends the summary on every configured channel. Every channel is attempted; the first
// failure is returned as NOTIFICATION_SEND_FAILED.
func (n *RunNotifier) Notify(ctx context.Context, summary RunSummary) error {
	if len(summary.Report) > maxReportLines {
		summary.Report = summary.Report[:maxReportLines]
	}

	var firstErr error
	if n.snsEnabled() {
		if err := n.publish(ctx, summary); err != nil {
			n.logger.Error("Failed to publish run summary", map[string]interface{}{"runId": summary.RunID, "error": err.Error()})
			firstErr = errors.NewNotificationSendFailedError("sns", err)
		}
	}
	if n.sesEnabled() {
		if err := n.email(ctx, summary); err != nil {
			n.logger.Error("Failed to email run summary", map[string]interface{}{"runId": summary.RunID, "error": err.Error()})
			if firstErr == nil {
				firstErr = errors.NewNotificationSendFailedError("ses", err)
			}
		}
	}
	return firstErr
}

func (n *RunNotifier) publish(ctx context.Context, summary RunSummary) error {
	body, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	out, err := n.cfg.Publisher.Publish(ctx, &sns.PublishInput{
		TopicArn: awssdk.String(n.cfg.TopicARN),
		Subject:  awssdk.String(subject(summary)),
		Message:  awssdk.String(string(body)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"status": {DataType: awssdk.String("String"), StringValue: awssdk.String(summary.Status())},
			"project": {DataType: awssdk.String("String"), StringValue: awssdk.String(summary.Project)},
		},
	})
	if err != nil {
		return err
	}
	n.logger.Info("Published run summary", map[string]interface{}{"runId": summary.RunID, "messageId": awssdk.ToString(out.MessageId)})
	return nil
}

func (n *RunNotifier) email(ctx context.Context, summary RunSummary) error {
	_, err := n.cfg.Sender.SendEmail(ctx, &ses.SendEmailInput{
		Source:      awssdk.String(n.cfg.From),
		Destination: &sestypes.Destination{ToAddresses: n.cfg.To},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(subject(summary)), Charset: awssdk.String("UTF-8")},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(plainText(summary)), Charset: awssdk.String("UTF-8")},
			},
		},
	})
	return err
}

func subject(s RunSummary) string {
	return fmt.Sprintf("Asset IDs for %s: %s (%d/%d rows)", s.Project, s.Status(), s.Succeeded, s.Total)
}

func plainText(s RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s\nRun: %s\nStatus: %s\n\n", s.Project, s.RunID, s.Status())
	fmt.Fprintf(&b, "Rows: %d total, %d succeeded, %d failed, %d cancelled\n", s.Total, s.Succeeded, s.Failed, s.Cancelled)
	fmt.Fprintf(&b, "Warnings: %d\nAI abbreviations: %d\nDuration: %s\n", s.Warnings, s.AICalls, s.Duration)
	if len(s.Report) > 0 {
		b.WriteString("\nReport:\n")
		for _, line := range s.Report {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}
