package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramPoster sends messages to a Telegram channel or chat through the Bot API.
// The bot is initialized on first use since that costs a getMe round trip.
type TelegramPoster struct {
	name       string
	token      string
	chatID     string
	endpoint   string
	httpClient *http.Client

	mu  sync.Mutex
	bot *tgbotapi.BotAPI
}

// NewTelegramPoster accepts either an "@channel" username or a numeric chat id.
// An empty baseURL uses the public Bot API.
func NewTelegramPoster(name, token, chatID, baseURL string, base *http.Client, timeout time.Duration) *TelegramPoster {
	endpoint := tgbotapi.APIEndpoint
	if baseURL != "" {
		endpoint = strings.TrimRight(baseURL, "/") + "/bot%s/%s"
	}

	httpClient := &http.Client{Timeout: timeout}
	if base != nil {
		httpClient.Transport = base.Transport
	}

	return &TelegramPoster{
		name:       name,
		token:      token,
		chatID:     chatID,
		endpoint:   endpoint,
		httpClient: httpClient,
	}
}

func (p *TelegramPoster) Post(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	message, err := p.message(text)
	if err != nil {
		return err
	}

	bot, err := p.client()
	if err != nil {
		return err
	}

	if _, err := bot.Send(message); err != nil {
		return p.postError(err)
	}
	return nil
}

func (p *TelegramPoster) message(text string) (tgbotapi.MessageConfig, error) {
	if strings.HasPrefix(p.chatID, "@") {
		return tgbotapi.NewMessageToChannel(p.chatID, text), nil
	}

	chatID, err := strconv.ParseInt(p.chatID, 10, 64)
	if err != nil {
		return tgbotapi.MessageConfig{}, fmt.Errorf("invalid telegram chat id %q: %w", p.chatID, err)
	}
	return tgbotapi.NewMessage(chatID, text), nil
}

func (p *TelegramPoster) client() (*tgbotapi.BotAPI, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bot != nil {
		return p.bot, nil
	}

	bot, err := tgbotapi.NewBotAPIWithClient(p.token, p.endpoint, p.httpClient)
	if err != nil {
		return nil, p.postError(err)
	}

	p.bot = bot
	return bot, nil
}

func (p *TelegramPoster) postError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &PostError{Channel: p.name, StatusCode: apiErr.Code, Detail: apiErr.Message, Err: err}
	}
	return &PostError{Channel: p.name, Detail: err.Error(), Err: err}
}
