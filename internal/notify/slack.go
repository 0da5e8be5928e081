// 계정 잠금 발생 시 Slack 채널로 보안 알림을 보내는 클라이언트
//
// 환경변수:
//   - SLACK_BOT_TOKEN: Slack Bot Token (xoxb-...)
//   - SLACK_CHANNEL_ID: Slack 채널 ID (C...)
//
// Webhook 대신 Bot Token을 사용하는 이유:
//   - thread_ts 반환: 같은 계정의 반복 잠금을 하나의 쓰레드로 묶을 수 있음

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rescuelog/backend/internal/config"
	"github.com/rescuelog/backend/internal/model"
)

var ErrNotConfigured = errors.New("slack bot token or channel ID not configured")

type SlackNotifier struct {
	botToken   string
	channelID  string
	apiURL     string
	footer     string
	httpClient *http.Client

	// threads: account ID -> thread_ts
	threads sync.Map
}

type SlackMessage struct {
	Channel     string            `json:"channel"`
	Text        string            `json:"text,omitempty"`
	Attachments []SlackAttachment `json:"attachments,omitempty"`
	ThreadTS    string            `json:"thread_ts,omitempty"`
}

type SlackAttachment struct {
	Color  string       `json:"color"`
	Title  string       `json:"title"`
	Text   string       `json:"text"`
	Footer string       `json:"footer,omitempty"`
	Ts     int64        `json:"ts,omitempty"`
	Fields []SlackField `json:"fields,omitempty"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	TS    string `json:"ts,omitempty"`
}

// NewSlackNotifier returns nil when the bot token or channel is missing, so
// callers can pass the result straight into service.AuthOptions.
func NewSlackNotifier(cfg config.SlackConfig, serviceName string, httpClient *http.Client) *SlackNotifier {
	if cfg.BotToken == "" || cfg.ChannelID == "" {
		return nil
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackNotifier{
		botToken:   cfg.BotToken,
		channelID:  cfg.ChannelID,
		apiURL:     cfg.APIURL,
		footer:     serviceName,
		httpClient: httpClient,
	}
}

// NotifyLockout posts one alert per lock. Repeat locks of the same account are
// sent as replies in the thread started by its first lock.
func (n *SlackNotifier) NotifyLockout(ctx context.Context, event model.LockoutEvent) error {
	if n == nil || n.botToken == "" || n.channelID == "" {
		return ErrNotConfigured
	}

	key := event.AccountID.String()
	msg := SlackMessage{
		Channel: n.channelID,
		Attachments: []SlackAttachment{
			{
				Color: "#dc3545",
				Title: "🔒 Account locked",
				Text:  fmt.Sprintf("%d consecutive failed logins", event.Failures),
				Fields: []SlackField{
					{Title: "Account", Value: key, Short: false},
					{Title: "Phone", Value: MaskPhone(event.Phone), Short: true},
					{Title: "Locked until", Value: event.Until.UTC().Format(time.RFC3339), Short: true},
				},
				Footer: n.footer,
				Ts:     time.Now().Unix(),
			},
		},
	}
	if ts, ok := n.threads.Load(key); ok {
		msg.ThreadTS = ts.(string)
	}

	resp, err := n.send(ctx, msg)
	if err != nil {
		return err
	}
	if msg.ThreadTS == "" && resp.TS != "" {
		n.threads.Store(key, resp.TS)
	}
	return nil
}

// Slack API 호출
func (n *SlackNotifier) send(ctx context.Context, msg SlackMessage) (*SlackResponse, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.botToken)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var slackResp SlackResponse
	if err := json.Unmarshal(body, &slackResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if !slackResp.OK {
		return nil, fmt.Errorf("slack API error: %s", slackResp.Error)
	}
	return &slackResp, nil
}

// MaskPhone keeps only the last four digits.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 4 {
		return phone
	}
	masked := bytes.Repeat([]byte("*"), len(r)-4)
	return string(masked) + string(r[len(r)-4:])
}
