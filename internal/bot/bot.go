package bot

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/SiluPanda/coinmonitor/internal/catalog"
	"github.com/SiluPanda/coinmonitor/internal/storage"
	"github.com/SiluPanda/coinmonitor/internal/telegram"
)

// API is the slice of the Telegram client the bot consumes.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]telegram.Update, error)
}

// Options tune the bot loop.
type Options struct {
	PollTimeout time.Duration
}

// Bot parses chat commands and writes subscriptions through the user
// repository. It is glue around the engine: all signal logic lives in
// the service package.
type Bot struct {
	api     API
	users   storage.UserRepository
	catalog *catalog.Catalog
	opts    Options
	logger  zerolog.Logger
}

// New constructs the bot.
func New(api API, users storage.UserRepository, cat *catalog.Catalog, opts Options, logger zerolog.Logger) *Bot {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 50 * time.Second
	}
	return &Bot{
		api:     api,
		users:   users,
		catalog: cat,
		opts:    opts,
		logger:  logger.With().Str("component", "bot").Logger(),
	}
}

// Run long-polls for updates until ctx is cancelled. A failed poll is
// logged and retried after a short pause; it never terminates the loop.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.opts.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			b.logger.Error().Err(err).Msg("poll failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			if update.Message == nil || update.Message.Text == "" {
				continue
			}
			b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *telegram.Message) {
	text := strings.TrimSpace(msg.Text)
	if !strings.HasPrefix(text, "/") {
		return
	}

	tokens := strings.Fields(text)
	command := strings.ToLower(tokens[0])
	// Commands in groups arrive as /cmd@botname.
	if at := strings.Index(command, "@"); at > 0 {
		command = command[:at]
	}

	chatID := msg.Chat.ID
	var reply string
	switch command {
	case "/start":
		reply = b.handleStart(ctx, msg)
	case "/help":
		reply = helpMessage
	case "/all":
		reply = b.handleAll()
	case "/watchlist":
		reply = b.handleWatchlist(ctx, chatID)
	case "/add":
		reply = b.handleAdd(ctx, chatID, tokens)
	case "/remove":
		reply = b.handleRemove(ctx, chatID, tokens)
	case "/alert":
		reply = b.handleAlert(ctx, chatID, tokens)
	default:
		reply = "Unknown command, use /help to see everything the bot can do"
	}

	if reply == "" {
		return
	}
	if err := b.api.SendMessage(ctx, chatID, reply); err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Str("command", command).Msg("reply failed")
	}
}
