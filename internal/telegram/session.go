package telegram

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"fx-signal-bot/internal/chart"
	"fx-signal-bot/internal/engine"
	"fx-signal-bot/internal/types"
	"fx-signal-bot/lib/helpers"
	"fx-signal-bot/lib/translation"

	log "github.com/sirupsen/logrus"
)

// deleteTolerance absorbs the rounding the delete keyboard labels carry.
const deleteTolerance = 0.01

type sessionState int

const (
	stateIdle sessionState = iota
	stateSelectingCurrency
	stateEnteringPrice
	stateViewingAlerts
	stateDeletingAlert
)

// session is one chat's conversation state. Sessions never share scratch
// data; each is keyed by chat id.
type session struct {
	state         sessionState
	pendingSymbol types.Symbol

	// deleteChoices maps the labels of the last shown delete keyboard to
	// the alerts they were built from. Rebuilt every time the delete menu
	// is shown, discarded on any exit from the deleting state.
	deleteChoices map[string]deleteChoice
}

// deleteChoice pins one delete-keyboard label to a concrete alert.
type deleteChoice struct {
	symbol  types.Symbol
	alertID string
}

func (s *session) reset() {
	s.state = stateIdle
	s.pendingSymbol = ""
	s.deleteChoices = nil
}

type intentKind int

const (
	intentUnknown intentKind = iota
	intentShowPrice
	intentAddAlert
	intentSelectSymbol
	intentMyAlerts
	intentDeleteMenu
	intentDeleteItem
	intentBack
	intentRawInput
)

// intent is a user message parsed once at the transport boundary. The
// explicit tag removes the ambiguity between a symbol appearing in a
// "show price" button and in an "alert" button.
type intent struct {
	kind   intentKind
	symbol types.Symbol
	target float64
	raw    string
}

func parseIntent(text string) intent {
	trimmed := strings.TrimSpace(text)

	switch trimmed {
	case backLabel():
		return intent{kind: intentBack}
	case myAlertsLabel():
		return intent{kind: intentMyAlerts}
	case addAlertLabel():
		return intent{kind: intentAddAlert}
	case deleteMenuLabel():
		return intent{kind: intentDeleteMenu}
	}

	if strings.HasPrefix(trimmed, "🗑") && strings.Contains(trimmed, ":") {
		if in, ok := parseDeleteItem(trimmed); ok {
			return in
		}
		return intent{kind: intentUnknown, raw: trimmed}
	}

	if symbol, ok := types.ParseSymbol(trimmed); ok {
		if strings.Contains(strings.ToLower(trimmed), translation.Translate("alert")) {
			return intent{kind: intentSelectSymbol, symbol: symbol}
		}
		return intent{kind: intentShowPrice, symbol: symbol}
	}

	return intent{kind: intentRawInput, raw: trimmed}
}

func parseDeleteItem(text string) (intent, bool) {
	parts := strings.SplitN(text, ":", 2)
	if len(parts) < 2 {
		return intent{}, false
	}
	symbol, ok := types.ParseSymbol(parts[0])
	if !ok {
		return intent{}, false
	}
	target, err := parseTargetPrice(parts[1])
	if err != nil {
		return intent{}, false
	}
	return intent{kind: intentDeleteItem, symbol: symbol, target: target, raw: text}, true
}

// parseTargetPrice keeps only digits and the decimal point, then parses
// the remainder. "3,100 pls" and "$3100" both come out as 3100.
func parseTargetPrice(text string) (float64, error) {
	var cleaned strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' {
			cleaned.WriteRune(r)
		}
	}
	return strconv.ParseFloat(cleaned.String(), 64)
}

func userKey(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

func (b *Bot) session(chatID int64) *session {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.sessions[chatID]
	if !ok {
		s = &session{state: stateIdle}
		b.sessions[chatID] = s
	}
	return s
}

// HandleStart (re)initializes a chat's session and shows the main menu.
func (b *Bot) HandleStart(chatID int64, firstName string) {
	userID := userKey(chatID)
	if err := b.store.EnsureUser(userID); err != nil {
		log.Errorf("could not register user %s: %v", userID, err)
	}
	if err := b.baselines.EnsureUser(userID); err != nil {
		log.Errorf("could not register user %s baselines: %v", userID, err)
	}

	b.session(chatID).reset()

	greeting := fmt.Sprintf(
		translation.Translate("👋 Hello, %s!\n\n💹 Use the buttons to check prices and set alerts:"),
		firstName,
	)
	if err := b.sendText(chatID, helpers.EscapeMarkdownV2(greeting), mainKeyboard()); err != nil {
		log.Error(err)
	}
}

// HandleMessage runs one step of the conversation state machine.
func (b *Bot) HandleMessage(chatID int64, text string) {
	sess := b.session(chatID)
	in := parseIntent(text)

	if in.kind == intentBack {
		sess.reset()
		b.reply(chatID, translation.Translate("Back to the main menu:"), mainKeyboard())
		return
	}

	switch sess.state {
	case stateSelectingCurrency:
		b.stepSelectingCurrency(chatID, sess, in)
	case stateEnteringPrice:
		b.stepEnteringPrice(chatID, sess, text)
	case stateViewingAlerts:
		b.stepViewingAlerts(chatID, sess, in)
	case stateDeletingAlert:
		b.stepDeletingAlert(chatID, sess, in)
	default:
		b.stepIdle(chatID, sess, in)
	}
}

func (b *Bot) stepIdle(chatID int64, sess *session, in intent) {
	switch in.kind {
	case intentShowPrice:
		b.sendPriceCard(chatID, in.symbol)
	case intentMyAlerts:
		b.showAlerts(chatID, sess)
	case intentAddAlert:
		sess.state = stateSelectingCurrency
		b.reply(chatID, translation.Translate("📊 Which pair do you want an alert for?"), currencyKeyboard())
	case intentSelectSymbol:
		// Selecting straight from the main flow also works.
		b.stepSelectingCurrency(chatID, sess, in)
	default:
		// Unrecognized input never mutates state.
	}
}

func (b *Bot) stepSelectingCurrency(chatID int64, sess *session, in intent) {
	if in.kind != intentSelectSymbol {
		b.reply(chatID, translation.Translate("📊 Which pair do you want an alert for?"), currencyKeyboard())
		return
	}

	sess.pendingSymbol = in.symbol
	sess.state = stateEnteringPrice

	text := fmt.Sprintf(
		translation.Translate("📊 Adding an alert for %s\n\n📈 Current price: %s\n\n⚠️ Please enter the alert price (e.g. 3100):"),
		in.symbol, b.formattedPrice(in.symbol),
	)
	b.reply(chatID, text, nil)
}

func (b *Bot) stepEnteringPrice(chatID int64, sess *session, text string) {
	if sess.pendingSymbol == "" {
		sess.state = stateIdle
		b.reply(chatID, translation.Translate("⚠️ Something went wrong. Please try again."), mainKeyboard())
		return
	}

	target, err := parseTargetPrice(text)
	if err != nil {
		// The pending symbol survives so the user can retry the number.
		b.reply(chatID, translation.Translate("⚠️ Invalid format. Please enter a number (e.g. 3100)"), nil)
		return
	}

	symbol := sess.pendingSymbol
	userID := userKey(chatID)
	if _, err := b.store.Add(userID, symbol, target, time.Now()); err != nil {
		log.Errorf("could not save alert for user %s: %v", userID, err)
		b.reply(chatID, translation.Translate("⚠️ Could not save the alert. Please try again later."), mainKeyboard())
		return
	}

	sess.pendingSymbol = ""
	sess.state = stateIdle

	current, fetchErr := b.sampler.Fetch(symbol)
	direction := translation.Translate("falls")
	if fetchErr == nil && engine.Rising(target, current) {
		direction = translation.Translate("rises")
	}

	text = fmt.Sprintf(
		translation.Translate("✅ Alert added!\n\n🔔 You will be notified when %s %s to %s.\n📈 Current price: %s"),
		symbol, direction, helpers.FormatTarget(target), helpers.FormatTarget(current),
	)
	b.reply(chatID, text, mainKeyboard())
}

func (b *Bot) stepViewingAlerts(chatID int64, sess *session, in intent) {
	if in.kind != intentDeleteMenu {
		return
	}

	userID := userKey(chatID)
	if len(b.store.ListByUser(userID)) == 0 {
		sess.state = stateIdle
		b.reply(chatID, translation.Translate("🔔 You have no alerts."), mainKeyboard())
		return
	}

	keyboard, choices := b.deleteMenu(userID)
	sess.state = stateDeletingAlert
	sess.deleteChoices = choices
	b.reply(chatID, translation.Translate("🗑 Pick the alert to delete:"), keyboard)
}

func (b *Bot) stepDeletingAlert(chatID int64, sess *session, in intent) {
	if in.kind != intentDeleteItem {
		return
	}

	choice, known := sess.deleteChoices[in.raw]
	sess.reset()
	userID := userKey(chatID)

	var removed bool
	var err error
	if known {
		// The label came from the keyboard we showed, so the exact alert
		// is known; stale labels fall back to matching by value.
		removed, err = b.store.Remove(userID, choice.symbol, choice.alertID)
	} else {
		removed, err = b.store.RemoveByTarget(userID, in.symbol, in.target, deleteTolerance)
	}
	if err != nil {
		log.Errorf("could not delete alert for user %s: %v", userID, err)
		b.reply(chatID, translation.Translate("⚠️ Could not delete the alert. Please try again later."), mainKeyboard())
		return
	}
	if !removed {
		b.reply(chatID, translation.Translate("⚠️ Alert not found or already deleted."), mainKeyboard())
		return
	}

	text := fmt.Sprintf(
		translation.Translate("✅ Alert deleted:\n%s: %s"),
		in.symbol, helpers.FormatTarget(in.target),
	)
	b.reply(chatID, text, mainKeyboard())
}

// showAlerts lists all pending alerts with current prices and offers the
// delete menu.
func (b *Bot) showAlerts(chatID int64, sess *session) {
	userID := userKey(chatID)
	alerts := b.store.ListByUser(userID)
	if len(alerts) == 0 {
		b.reply(chatID, translation.Translate("🔔 You have no alerts.\n\nPress '➕ Add alert' to set one."), mainKeyboard())
		return
	}

	var list strings.Builder
	list.WriteString(translation.Translate("🔔 Your alerts:\n\n"))
	for _, symbol := range types.AllSymbols() {
		pending := alerts[symbol]
		if len(pending) == 0 {
			continue
		}

		current, err := b.sampler.Fetch(symbol)
		if err != nil {
			list.WriteString(fmt.Sprintf(translation.Translate("📊 %s - price unavailable\n"), symbol))
		} else {
			list.WriteString(fmt.Sprintf(translation.Translate("📊 %s - Current price: %s\n"), symbol, helpers.FormatTarget(current)))
		}

		for i, alert := range pending {
			direction := translation.Translate("falls")
			if err == nil && engine.Rising(alert.TargetPrice, current) {
				direction = translation.Translate("rises")
			}
			list.WriteString(fmt.Sprintf(
				translation.Translate("  %d. when it %s to %s ⏰ (set %s)\n"),
				i+1, direction, helpers.FormatTarget(alert.TargetPrice),
				helpers.TimeAgo(alert.CreatedAt, types.TimeLayout),
			))
		}
		list.WriteString("\n")
	}

	sess.state = stateViewingAlerts
	b.reply(chatID, list.String(), viewAlertsKeyboard())
}

// sendPriceCard fetches the current price and sends it with a sparkline
// chart and the baseline trend framing.
func (b *Bot) sendPriceCard(chatID int64, symbol types.Symbol) {
	userID := userKey(chatID)

	current, err := b.sampler.Fetch(symbol)
	if err != nil {
		log.Warnf("price card for %s failed: %v", symbol, err)
		b.reply(chatID, fmt.Sprintf(
			translation.Translate("⚠️ Could not fetch data for %s. Please try again later."), symbol,
		), mainKeyboard())
		return
	}

	formatted := symbol.CurrencySign() + helpers.FormatTarget(current)
	text := fmt.Sprintf(
		translation.Translate("💰 %s current price: %s\n📅 %s"),
		symbol, formatted, time.Now().Format(types.TimeLayout),
	)

	baseline, first, err := b.baselines.Observe(userID, symbol, current)
	if err != nil {
		log.Errorf("could not record baseline for user %s: %v", userID, err)
	} else if !first {
		diff := current - baseline
		switch {
		case diff < 0:
			text += fmt.Sprintf(translation.Translate("\n\n📉 %.2f below the first observed price"), -diff)
		case diff >= 2:
			text += fmt.Sprintf(translation.Translate("\n\n📈 %.2f above the first observed price"), diff)
		default:
			text += fmt.Sprintf(translation.Translate("\n\n📊 %.2f above the first observed price"), diff)
		}
	}
	text += translation.Translate("\n\nPress '➕ Add alert' to set an alert")

	png, chartErr := chart.Render(symbol, b.sampler.History(symbol))
	if chartErr != nil {
		log.Debugf("no chart for %s: %v", symbol, chartErr)
		b.reply(chatID, text, mainKeyboard())
		return
	}
	if err := b.sendPhoto(chatID, png, helpers.EscapeMarkdownV2(text), mainKeyboard()); err != nil {
		log.Error(err)
	}
}

func (b *Bot) formattedPrice(symbol types.Symbol) string {
	current, err := b.sampler.Fetch(symbol)
	if err != nil {
		return translation.Translate("unavailable")
	}
	return symbol.CurrencySign() + helpers.FormatTarget(current)
}

// reply escapes and sends plain conversational copy.
func (b *Bot) reply(chatID int64, text string, keyboard interface{}) {
	if err := b.sendText(chatID, helpers.EscapeMarkdownV2(text), keyboard); err != nil {
		log.Error(err)
	}
}
