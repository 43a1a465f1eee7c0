package telegram

import (
	"fmt"

	"fx-signal-bot/internal/price"
	"fx-signal-bot/internal/store"
	"fx-signal-bot/internal/types"
	"fx-signal-bot/lib/helpers"
	"fx-signal-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// NewBot creates new telegram bot
func NewBot(c BotConfig, alerts *store.AlertStore, baselines *store.BaselineStore, sampler *price.Sampler) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:       bot,
		Config:    c,
		api:       bot,
		store:     alerts,
		baselines: baselines,
		sampler:   sampler,
		sessions:  make(map[int64]*session),
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// sendText sends a MarkdownV2 message, optionally with a reply keyboard.
func (b *Bot) sendText(chatID int64, text string, keyboard interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	_, err := b.api.Send(msg)
	return errors.Wrapf(err, "could not send message to %d", chatID)
}

// sendPhoto sends a rendered chart with a MarkdownV2 caption.
func (b *Bot) sendPhoto(chatID int64, png []byte, caption string, keyboard interface{}) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: png,
	})
	photo.Caption = caption
	photo.ParseMode = "MarkdownV2"
	if keyboard != nil {
		photo.ReplyMarkup = keyboard
	}
	_, err := b.api.Send(photo)
	return errors.Wrapf(err, "could not send photo to %d", chatID)
}

func symbolEmoji(symbol types.Symbol) string {
	switch symbol {
	case types.SymbolBTCUSD:
		return "💰"
	case types.SymbolXAUUSD:
		return "🥇"
	default:
		return "💱"
	}
}

func priceLabel(symbol types.Symbol) string {
	return fmt.Sprintf("%s %s", symbolEmoji(symbol), symbol)
}

func alertLabel(symbol types.Symbol) string {
	return fmt.Sprintf("%s %s %s", symbolEmoji(symbol), symbol, translation.Translate("alert"))
}

func deleteItemLabel(symbol types.Symbol, target float64) string {
	return fmt.Sprintf("🗑 %s: %s", symbol, helpers.FormatTarget(target))
}

func backLabel() string {
	return translation.Translate("🔙 Back")
}

func myAlertsLabel() string {
	return translation.Translate("⏰ My alerts")
}

func addAlertLabel() string {
	return translation.Translate("➕ Add alert")
}

func deleteMenuLabel() string {
	return translation.Translate("🗑 Delete alert")
}

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(priceLabel(types.SymbolBTCUSD)),
			tgbotapi.NewKeyboardButton(priceLabel(types.SymbolXAUUSD)),
			tgbotapi.NewKeyboardButton(priceLabel(types.SymbolGBPJPY)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(myAlertsLabel()),
			tgbotapi.NewKeyboardButton(addAlertLabel()),
		),
	)
}

func currencyKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(alertLabel(types.SymbolBTCUSD)),
			tgbotapi.NewKeyboardButton(alertLabel(types.SymbolXAUUSD)),
			tgbotapi.NewKeyboardButton(alertLabel(types.SymbolGBPJPY)),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(backLabel()),
		),
	)
}

func viewAlertsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	return tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(deleteMenuLabel())),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(backLabel())),
	)
}

// deleteMenu lists each pending alert as one selectable row keyed by symbol
// and formatted target, and maps every label back to the alert id it was
// built from so deletion can address the exact alert.
func (b *Bot) deleteMenu(userID string) (tgbotapi.ReplyKeyboardMarkup, map[string]deleteChoice) {
	var rows [][]tgbotapi.KeyboardButton
	choices := make(map[string]deleteChoice)
	alerts := b.store.ListByUser(userID)
	for _, symbol := range types.AllSymbols() {
		for _, alert := range alerts[symbol] {
			label := deleteItemLabel(symbol, alert.TargetPrice)
			if _, taken := choices[label]; taken {
				// Value-identical alerts share a label; the first one wins,
				// matching what the user can actually tell apart.
				continue
			}
			choices[label] = deleteChoice{symbol: symbol, alertID: alert.ID}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(label)))
		}
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(backLabel())))
	return tgbotapi.NewReplyKeyboard(rows...), choices
}
