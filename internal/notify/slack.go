package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hamed0406/alertwatcher/internal/domain"
)

const (
	DefaultUsername = "Chaos Watcher 🤖"
	DefaultIcon     = ":robot_face:"
	DefaultTimeout  = 10 * time.Second

	timestampLayout = "2006-01-02 15:04:05 UTC"
)

type Slack struct {
	Webhook  string
	Username string
	Icon     string
	Client   *http.Client
}

// NewSlack returns nil for an empty webhook so callers can skip it.
func NewSlack(webhook string, timeout time.Duration) *Slack {
	if webhook == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Slack{
		Webhook:  webhook,
		Username: DefaultUsername,
		Icon:     DefaultIcon,
		Client:   &http.Client{Timeout: timeout},
	}
}

type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Fields []Field `json:"fields"`
}

type Payload struct {
	Username    string       `json:"username"`
	Icon        string       `json:"icon"`
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// BuildPayload renders a candidate in the webhook's message format.
func BuildPayload(username, icon string, c domain.Candidate, at time.Time) Payload {
	color := string(c.Severity)
	if color == "" {
		color = string(domain.SeverityDanger)
	}
	return Payload{
		Username: username,
		Icon:     icon,
		Text:     "🚨 *" + c.Title + "*",
		Attachments: []Attachment{{
			Color: color,
			Fields: []Field{
				{Title: "Details", Value: c.Details},
				{Title: "Timestamp", Value: at.UTC().Format(timestampLayout), Short: true},
			},
		}},
	}
}

func (s *Slack) Send(ctx context.Context, c domain.Candidate, at time.Time) error {
	if s == nil || s.Webhook == "" {
		return ErrDisabled
	}
	body, err := json.Marshal(BuildPayload(s.Username, s.Icon, c, at))
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Webhook, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &RejectedError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
