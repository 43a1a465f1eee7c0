package telegram

import (
	"fmt"
	"strconv"
	"time"

	"fx-signal-bot/internal/chart"
	"fx-signal-bot/internal/types"
	"fx-signal-bot/lib/helpers"
	"fx-signal-bot/lib/translation"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// NotifyTrigger delivers a crossing notification: an attention banner, the
// alert details over the symbol's sparkline chart, and a closing banner.
// Delivery is best-effort; the engine consumes the alert either way.
func (b *Bot) NotifyTrigger(userID string, symbol types.Symbol, target, current float64) error {
	chatID, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "bad user id %q", userID)
	}

	banner := translation.Translate("🚨 ATTENTION! 🚨 ATTENTION! 🚨 ATTENTION! 🚨")
	if err := b.sendText(chatID, helpers.EscapeMarkdownV2(banner), nil); err != nil {
		return err
	}

	details := fmt.Sprintf(
		translation.Translate("🔔🔔🔔 ALERT TRIGGERED! 🔔🔔🔔\n\n💢💢💢 %s 💢💢💢\n\n🎯 Target price: %s\n📈 Current price: %s\n⏰ Time: %s\n\n❗️❗️❗️ ALERT TRIGGERED ❗️❗️❗️"),
		symbol,
		helpers.FormatTarget(target),
		helpers.FormatTarget(current),
		time.Now().Format(types.TimeLayout),
	)

	png, chartErr := chart.Render(symbol, b.sampler.History(symbol))
	if chartErr != nil {
		log.Debugf("no chart for trigger notification on %s: %v", symbol, chartErr)
		if err := b.sendText(chatID, helpers.EscapeMarkdownV2(details), nil); err != nil {
			return err
		}
	} else if err := b.sendPhoto(chatID, png, helpers.EscapeMarkdownV2(details), nil); err != nil {
		return err
	}

	closing := translation.Translate("🔊 SIGNAL! 🔊 SIGNAL! 🔊 SIGNAL! 🔊")
	return b.sendText(chatID, helpers.EscapeMarkdownV2(closing), nil)
}
