package bot

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SiluPanda/coinmonitor/internal/storage"
	"github.com/SiluPanda/coinmonitor/internal/telegram"
)

const helpMessage = `The bot can do the following things

Setup & starting up

/start Welcome command, sets up your profile and prints a welcome message

Manage watchlist

/watchlist : Print the details of coins in your watchlist
/add : Add a coin to your watchlist, example: /add BTC
/remove : Remove a coin from your watchlist, example: /remove BTC

See supported coins

/all : Print all the monitorable coins

Alerts

/alert volatility : Get alerted on extreme volatility for your watchlist
/alert price <coin> <above|below> <strike> : One-shot price alert, example: /alert price BTC below 44000`

func (b *Bot) handleStart(ctx context.Context, msg *telegram.Message) string {
	chatID := msg.Chat.ID
	if err := b.users.EnsureUser(ctx, chatID); err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Msg("user setup failed")
		return "Something went wrong setting up your profile, please try again"
	}

	name := ""
	if msg.From != nil {
		name = msg.From.FirstName
		if name == "" {
			name = msg.From.Username
		}
	}

	greeting := "Hi, Gday!"
	if name != "" {
		greeting = fmt.Sprintf("Hi %s, Gday!", name)
	}
	return greeting + `
Welcome to coinmonitor. Here are some commands to start with:
/help: shows all the available commands
/watchlist: shows the coins in your watchlist
/add <coin symbol>: adds a coin to your watchlist, example: /add BTC
/remove <coin symbol>: removes a coin from your watchlist, example: /remove BTC`
}

func (b *Bot) handleAll() string {
	snapshots := b.catalog.All()
	if len(snapshots) == 0 {
		return "No coins available yet, please try again in a minute"
	}

	builder := strings.Builder{}
	builder.WriteString("Below are all coins available to monitor:\n")
	for _, snap := range snapshots {
		builder.WriteString(fmt.Sprintf("%s (%s)\n", snap.Code, snap.Name))
	}
	return builder.String()
}

func (b *Bot) handleWatchlist(ctx context.Context, chatID int64) string {
	user, err := b.users.GetUser(ctx, chatID)
	if err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Msg("watchlist lookup failed")
		return "Could not fetch your watchlist, please try again"
	}

	builder := strings.Builder{}
	for _, code := range user.Watchlist {
		snap, ok := b.catalog.Snapshot(code)
		if !ok {
			continue
		}
		builder.WriteString(fmt.Sprintf("%s %s\nPrice: %s\nVolume: %s\nMarket Cap: %s\n\n",
			snap.Code, snap.Name, snap.Rate.String(), snap.Volume.String(), snap.Cap.String()))
	}

	if builder.Len() == 0 {
		return "Watchlist seems empty, add some coins with the /add <coin symbol> command"
	}
	return builder.String()
}

func (b *Bot) handleAdd(ctx context.Context, chatID int64, tokens []string) string {
	if len(tokens) < 2 {
		return "No symbol provided, please provide a valid symbol, use /all to get all available coins"
	}

	code, ok := b.catalog.Resolve(tokens[1])
	if !ok {
		return fmt.Sprintf("%s is not a valid crypto code, please use /all to get all available coin codes", strings.ToUpper(tokens[1]))
	}

	if err := b.users.AddToWatchlist(ctx, chatID, code); err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Str("coin", string(code)).Msg("watchlist add failed")
		return "Could not update your watchlist, please try again"
	}
	return fmt.Sprintf("Successfully added %s to your watchlist", code)
}

func (b *Bot) handleRemove(ctx context.Context, chatID int64, tokens []string) string {
	if len(tokens) < 2 {
		return "No symbol provided, please provide a valid symbol, use /all to get all available coins"
	}

	code, ok := b.catalog.Resolve(tokens[1])
	if !ok {
		return fmt.Sprintf("%s is not a valid crypto code or not supported yet, please use /all to get all available coin codes", strings.ToUpper(tokens[1]))
	}

	if err := b.users.RemoveFromWatchlist(ctx, chatID, code); err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Str("coin", string(code)).Msg("watchlist remove failed")
		return "Could not update your watchlist, please try again"
	}
	return fmt.Sprintf("Successfully removed %s from your watchlist", code)
}

func (b *Bot) handleAlert(ctx context.Context, chatID int64, tokens []string) string {
	if len(tokens) < 2 {
		return "No alert type provided, supported alert types are volatility and price, for more info use /help"
	}

	switch strings.ToLower(tokens[1]) {
	case "volatility":
		if err := b.users.SetVolatilityAlert(ctx, chatID, true); err != nil {
			b.logger.Error().Err(err).Int64("chat", chatID).Msg("volatility subscription failed")
			return "Could not set up the alert, please try again"
		}
		return "Added alert for extreme volatility signals for your watchlist"
	case "price":
		return b.handlePriceAlert(ctx, chatID, tokens)
	default:
		return "Unsupported alert type, supported alert types are volatility and price"
	}
}

func (b *Bot) handlePriceAlert(ctx context.Context, chatID int64, tokens []string) string {
	if len(tokens) < 5 {
		return `Coin and/or direction and/or strike price missing, a valid alert command looks like this:
/alert price BTC below 44000
or like this:
/alert price BTC above 24000`
	}

	code, ok := b.catalog.Resolve(tokens[2])
	if !ok {
		return fmt.Sprintf("Coin %s is either not valid or not supported yet", strings.ToUpper(tokens[2]))
	}

	direction, err := storage.ParseDirection(strings.ToLower(tokens[3]))
	if err != nil {
		return "Direction must be either above or below"
	}

	strike, err := decimal.NewFromString(tokens[4])
	if err != nil || strike.IsNegative() {
		return fmt.Sprintf("%s is not a valid strike price", tokens[4])
	}

	alert := storage.ThresholdAlert{
		UserID:    chatID,
		CoinID:    code,
		Direction: direction,
		Strike:    strike,
	}
	if _, err := b.users.InsertThresholdAlert(ctx, alert); err != nil {
		b.logger.Error().Err(err).Int64("chat", chatID).Str("coin", string(code)).Msg("threshold alert insert failed")
		return "Could not set up the alert, please try again"
	}
	return fmt.Sprintf("Successfully added alert for coin %s for a strike price of %s %s", code, direction, strike.String())
}
