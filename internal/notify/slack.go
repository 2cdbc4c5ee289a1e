package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/hamed0406/portwatch/internal/domain"
)

// Slack posts alerts to an incoming webhook as a single colored attachment.
type Slack struct {
	Webhook string
	Client  *http.Client
}

// NewSlack returns nil when no webhook is configured.
func NewSlack(webhook string) *Slack {
	if webhook == "" {
		return nil
	}
	return &Slack{
		Webhook: webhook,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type slackAttachment struct {
	Fallback string       `json:"fallback"`
	Color    string       `json:"color"`
	Title    string       `json:"title"`
	Text     string       `json:"text,omitempty"`
	Fields   []slackField `json:"fields"`
	TS       int64        `json:"ts,omitempty"`
}

type slackMessage struct {
	Text        string            `json:"text"`
	Attachments []slackAttachment `json:"attachments"`
}

func slackColor(s domain.Status) string {
	switch s {
	case domain.StatusDown:
		return "danger"
	case domain.StatusUp:
		return "good"
	default:
		return "#9e9e9e"
	}
}

func newSlackMessage(a Alert) slackMessage {
	tr := a.Transition
	att := slackAttachment{
		Fallback: a.Title + ": " + tr.Endpoint.String(),
		Color:    slackColor(tr.To),
		Title:    a.Title,
		Text:     a.Text,
		Fields: []slackField{
			{Title: "Endpoint", Value: tr.Endpoint.String(), Short: true},
			{Title: "Status", Value: tr.From.String() + " → " + tr.To.String(), Short: true},
		},
	}
	if !tr.At.IsZero() {
		att.TS = tr.At.Unix()
	}
	return slackMessage{Text: "*" + a.Title + "* " + tr.Endpoint.String(), Attachments: []slackAttachment{att}}
}

func (s *Slack) Send(ctx context.Context, a Alert) error {
	if s == nil || s.Webhook == "" {
		return errors.New("slack disabled")
	}
	body, err := json.Marshal(newSlackMessage(a))
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("slack post %s: %w", a.Transition.Endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("slack non-2xx for %s: %d", a.Transition.Endpoint, resp.StatusCode)
	}
	return nil
}
