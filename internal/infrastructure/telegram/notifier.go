package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"StoryStream/internal/config"
	"StoryStream/internal/domain"
	"StoryStream/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Notifier posts a digest of each delta to a Telegram chat via the bot API.
type Notifier struct {
	botToken string
	chatID   string
	apiBase  string
	limit    int
	client   *http.Client
}

var _ ports.DeltaSink = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier. The digest lists at
// most limit records; a non-positive limit lists all of them.
func NewNotifier(cfg config.TelegramConfig, limit int) *Notifier {
	return &Notifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		apiBase:  defaultAPIBase,
		limit:    limit,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// WithAPIBase points the notifier at another bot API host.
func (n *Notifier) WithAPIBase(base string) *Notifier {
	n.apiBase = strings.TrimRight(base, "/")
	return n
}

// Name identifies the sink in logs and metrics.
func (n *Notifier) Name() string {
	return "telegram"
}

// PublishDelta posts one message summarising the delta.
func (n *Notifier) PublishDelta(ctx context.Context, delta domain.Delta) error {
	if delta.Total() == 0 {
		return nil
	}
	if n.botToken == "" || n.chatID == "" || n.client == nil {
		return fmt.Errorf("telegram notifier misconfigured")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", buildDigest(delta, n.limit))
	form.Set("disable_web_page_preview", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: telegram: %w", domain.ErrDelivery, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: telegram error: %s", domain.ErrDelivery, resp.Status)
	}

	return nil
}

func buildDigest(delta domain.Delta, limit int) string {
	records := delta.Records
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d new stories\n\n", delta.Total())
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s\n%s\n", rec.Title, rec.Link)
	}
	if rest := delta.Total() - len(records); rest > 0 {
		fmt.Fprintf(&b, "\n...and %d more", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}
