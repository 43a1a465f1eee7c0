package telegram

import (
	"sync"

	"fx-signal-bot/internal/price"
	"fx-signal-bot/internal/store"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
}

// sender is the transport surface the handlers use, swappable in tests.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot wires the telegram transport to the alert stores and the price
// sampler, and tracks one conversation session per chat.
type Bot struct {
	Bot    *tgbotapi.BotAPI
	Config BotConfig

	api       sender
	store     *store.AlertStore
	baselines *store.BaselineStore
	sampler   *price.Sampler

	mu       sync.Mutex
	sessions map[int64]*session
}
