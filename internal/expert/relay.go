// Package expert relays chat threads to the expert team over Telegram and
// turns their answers into expert replies.
package expert

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"atsboost/internal/models"
	"atsboost/pkg/logger"
)

// Replier writes expert replies into a user's thread.
type Replier interface {
	History(ctx context.Context, userID string) ([]models.Message, error)
	SendExpertReply(ctx context.Context, userID, content string) (*models.Message, error)
}

// Drafter suggests a reply; optional.
type Drafter interface {
	DraftReply(ctx context.Context, thread []models.Message) (string, error)
}

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// maxTracked bounds the forwarded-message index.
const maxTracked = 5000

type Relay struct {
	bot          *tgbotapi.BotAPI
	sender       sender
	replier      Replier
	drafter      Drafter
	logger       *logger.Logger
	expertChatID int64

	// forwarded maps the Telegram message id of a relayed user message to the user id
	forwarded  map[int]string
	order      []int
	stateMutex sync.RWMutex
}

func NewRelay(token string, expertChatID int64, replier Replier, drafter Drafter, l *logger.Logger) (*Relay, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	l.Infow("Authorized on Telegram", "username", bot.Self.UserName)

	r := newRelay(bot, expertChatID, replier, drafter, l)
	r.bot = bot
	return r, nil
}

func newRelay(s sender, expertChatID int64, replier Replier, drafter Drafter, l *logger.Logger) *Relay {
	return &Relay{
		sender:       s,
		replier:      replier,
		drafter:      drafter,
		logger:       l,
		expertChatID: expertChatID,
		forwarded:    make(map[int]string),
	}
}

// Start begins receiving updates from Telegram via polling
func (r *Relay) Start(ctx context.Context) error {
	r.logger.Info("Removing any existing webhook")
	_, err := r.bot.Request(tgbotapi.DeleteWebhookConfig{
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to delete webhook: %w", err)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := r.bot.GetUpdatesChan(updateConfig)
	r.logger.Info("Started receiving Telegram updates")

	go r.handleUpdates(ctx, updates)
	return nil
}

// Stop gracefully shuts down the relay
func (r *Relay) Stop(ctx context.Context) error {
	r.bot.StopReceivingUpdates()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(500 * time.Millisecond):
		return nil
	}
}

func (r *Relay) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil {
			continue
		}
		go func(message *tgbotapi.Message) {
			defer func() {
				if rec := recover(); rec != nil {
					r.logger.Errorw("Recovered from panic while processing update", "error", rec)
				}
			}()
			r.handleMessage(ctx, message)
		}(update.Message)
	}
}

// MessageSent forwards a user's message to the expert chat. It returns at once.
func (r *Relay) MessageSent(_ context.Context, msg models.Message) {
	if msg.IsExpert {
		return
	}
	go r.forward(msg)
}

func (r *Relay) forward(msg models.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	text := formatForward(msg, r.draft(ctx, msg.UserID))
	sent, err := r.sender.Send(tgbotapi.NewMessage(r.expertChatID, text))
	if err != nil {
		r.logger.Errorw("Failed to forward message to experts", "error", err, "user_id", msg.UserID)
		return
	}
	r.track(sent.MessageID, msg.UserID)
}

func (r *Relay) draft(ctx context.Context, userID string) string {
	if r.drafter == nil {
		return ""
	}
	thread, err := r.replier.History(ctx, userID)
	if err != nil {
		return ""
	}
	text, err := r.drafter.DraftReply(ctx, thread)
	if err != nil {
		r.logger.Warnw("Failed to draft reply", "error", err, "user_id", userID)
		return ""
	}
	return text
}

func (r *Relay) track(telegramID int, userID string) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()

	r.forwarded[telegramID] = userID
	r.order = append(r.order, telegramID)
	if len(r.order) > maxTracked {
		delete(r.forwarded, r.order[0])
		r.order = r.order[1:]
	}
}

func (r *Relay) userFor(telegramID int) (string, bool) {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	uid, ok := r.forwarded[telegramID]
	return uid, ok
}

func (r *Relay) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil || message.Chat.ID != r.expertChatID {
		return
	}

	var userID, text string
	switch {
	case message.IsCommand() && message.Command() == "reply":
		var ok bool
		userID, text, ok = parseReplyArgs(message.CommandArguments())
		if !ok {
			r.reply(message, "Usage: /reply <user_id> <text>")
			return
		}
	case message.IsCommand() && message.Command() == "help":
		r.reply(message, "Reply to a forwarded message, or use /reply <user_id> <text>.")
		return
	case message.ReplyToMessage != nil:
		uid, ok := r.userFor(message.ReplyToMessage.MessageID)
		if !ok {
			r.reply(message, "I don't know which client that message belongs to. Use /reply <user_id> <text>.")
			return
		}
		userID, text = uid, message.Text
	default:
		return
	}

	if _, err := r.replier.SendExpertReply(ctx, userID, text); err != nil {
		r.logger.Errorw("Failed to deliver expert reply", "error", err, "user_id", userID)
		r.reply(message, "Failed to deliver the reply.")
		return
	}
	expertName := ""
	if message.From != nil {
		expertName = message.From.UserName
	}
	r.logger.Infow("Expert reply delivered", "user_id", userID, "expert", expertName)
}

func (r *Relay) reply(to *tgbotapi.Message, text string) {
	msg := tgbotapi.NewMessage(to.Chat.ID, text)
	msg.ReplyToMessageID = to.MessageID
	if _, err := r.sender.Send(msg); err != nil {
		r.logger.Errorw("Failed to send Telegram message", "error", err)
	}
}

func parseReplyArgs(args string) (userID, text string, ok bool) {
	args = strings.TrimSpace(args)
	idx := strings.IndexAny(args, " \n\t")
	if idx <= 0 {
		return "", "", false
	}
	userID = args[:idx]
	text = strings.TrimSpace(args[idx:])
	if text == "" {
		return "", "", false
	}
	return userID, text, true
}

func formatForward(msg models.Message, draft string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "New message from %s\n\n%s", msg.UserID, msg.Content)
	if msg.AttachmentURL != "" {
		fmt.Fprintf(&b, "\n\nAttachment: %s", msg.AttachmentURL)
	}
	if draft != "" {
		fmt.Fprintf(&b, "\n\nSuggested reply:\n%s", draft)
	}
	return b.String()
}
