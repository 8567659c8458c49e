package notify

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"pet-monitor/tracker/internal/metrics"
)

// RecipientSource is the persisted recipient-set abstraction: a list of chat
// IDs maintained by the /start webhook flow.
type RecipientSource interface {
	Recipients(ctx context.Context) ([]string, error)
	AddRecipient(ctx context.Context, chatID string) error
}

// TelegramSender delivers composed alerts to every registered chat.
// Per-recipient sends are fire-and-forget: failures are logged and counted,
// never retried.
type TelegramSender struct {
	token      string
	recipients RecipientSource
	client     *http.Client
	baseURL    string
}

func NewTelegramSender(token string, recipients RecipientSource) *TelegramSender {
	return &TelegramSender{
		token:      token,
		recipients: recipients,
		client:     &http.Client{Timeout: 10 * time.Second},
		baseURL:    "https://api.telegram.org",
	}
}

func (t *TelegramSender) Send(ctx context.Context, message string) {
	if t.token == "" {
		log.Printf("[telegram] no bot token configured, skipping send")
		return
	}
	ids, err := t.recipients.Recipients(ctx)
	if err != nil {
		log.Printf("[telegram] recipient listing failed: %v", err)
		metrics.NotificationSendFailures.Add(1)
		return
	}
	if len(ids) == 0 {
		log.Printf("[telegram] no registered chat IDs, skipping send")
		return
	}
	for _, chatID := range ids {
		if err := t.SendTo(ctx, chatID, message); err != nil {
			log.Printf("[telegram] send to %s failed: %v", chatID, err)
			metrics.NotificationSendFailures.Add(1)
		}
	}
}

// SendTo posts one message to a single chat.
func (t *TelegramSender) SendTo(ctx context.Context, chatID, message string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	form := url.Values{
		"chat_id":    {chatID},
		"text":       {message},
		"parse_mode": {"HTML"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Subscribe registers a chat ID and confirms the subscription.
func (t *TelegramSender) Subscribe(ctx context.Context, chatID string) error {
	if err := t.recipients.AddRecipient(ctx, chatID); err != nil {
		return err
	}
	log.Printf("[telegram] chat %s subscribed", chatID)
	if t.token == "" {
		return nil
	}
	return t.SendTo(ctx, chatID,
		"Subscribed. You will be alerted when your pet leaves the perimeter, enters a restricted room, or its temperature goes out of range.")
}
