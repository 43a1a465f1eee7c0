package main

import (
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"fx-signal-bot/config"
	"fx-signal-bot/internal/database"
	"fx-signal-bot/internal/engine"
	"fx-signal-bot/internal/price"
	"fx-signal-bot/internal/store"
	"fx-signal-bot/internal/telegram"
	"fx-signal-bot/internal/types"
	"fx-signal-bot/lib/translation"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"
)

type BotMetrics struct {
	MessagesHandled   prometheus.Counter
	CommandsProcessed prometheus.Counter
	AlertsTriggered   prometheus.Counter
	DispatchFailures  prometheus.Counter
}

var metrics = NewBotMetrics()

func init() {
	_ = godotenv.Load()
	config.InitConfig()
	setupLogging()
}

func NewBotMetrics() *BotMetrics {
	m := &BotMetrics{
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fxsignal",
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fxsignal",
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fxsignal",
			Subsystem: "telegram_bot",
			Name:      "alerts_triggered",
			Help:      "The total number of triggered price alerts",
		}),
		DispatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fxsignal",
			Subsystem: "telegram_bot",
			Name:      "dispatch_failures",
			Help:      "The total number of failed alert notifications",
		}),
	}

	prometheus.MustRegister(m.MessagesHandled)
	prometheus.MustRegister(m.CommandsProcessed)
	prometheus.MustRegister(m.AlertsTriggered)
	prometheus.MustRegister(m.DispatchFailures)

	return m
}

// countingNotifier wraps the bot's dispatcher with the trigger counters.
type countingNotifier struct {
	inner engine.Notifier
}

func (n countingNotifier) NotifyTrigger(userID string, symbol types.Symbol, target, current float64) error {
	metrics.AlertsTriggered.Inc()
	err := n.inner.NotifyTrigger(userID, symbol, target, current)
	if err != nil {
		metrics.DispatchFailures.Inc()
	}
	return err
}

func main() {
	translation.Configure("locales", strings.ToLower(config.GetString("lang")))
	log.Infof("Using locale %s", translation.GetLanguage())

	token := config.GetString("telegram_bot_token")
	if token == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN is not set, refusing to start")
	}

	dataDir := config.GetString("data_dir")
	if err := database.InitDB(filepath.Join(dataDir, "bot.db")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	LoadMetricsFromDB()

	alerts, err := store.NewAlertStore(store.NewFilePersister(filepath.Join(dataDir, "user_alerts.json")))
	if err != nil {
		log.Fatalf("Failed to load alerts: %v", err)
	}
	baselines, err := store.NewBaselineStore(store.NewFilePersister(filepath.Join(dataDir, "initial_prices.json")))
	if err != nil {
		log.Fatalf("Failed to load baselines: %v", err)
	}

	sampler := price.NewSampler(
		price.NewPaprikaSource(config.GetString("api_pro_key")),
		rand.New(rand.NewSource(time.Now().UnixNano())),
	)

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          token,
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
	}, alerts, baselines, sampler)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	alertEngine := engine.New(alerts, sampler, countingNotifier{inner: bot})
	alertEngine.Start()

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}

	go handleUpdates(bot, updates)

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB()
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		alertEngine.Stop()
		SaveMetricsToDB()
		database.CloseDB()
		log.Println("State flushed, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port")); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.InfoLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting telegram bot...")
}

func handleUpdates(bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			log.Debug("Received non-text update")
			continue
		}

		metrics.MessagesHandled.Inc()

		chatID := update.Message.Chat.ID
		if update.Message.IsCommand() {
			if update.Message.Command() == "start" {
				bot.HandleStart(chatID, update.Message.From.FirstName)
				metrics.CommandsProcessed.Inc()
			}
			continue
		}

		bot.HandleMessage(chatID, update.Message.Text)
	}
}

func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func launchMetricsAndHealthServer(port int) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler)

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func LoadMetricsFromDB() {
	for name, counter := range persistedCounters() {
		value, _ := database.GetMetric(name)
		counter.Add(value)
	}
	log.Debug("Metrics loaded from database.")
}

func SaveMetricsToDB() {
	for name, counter := range persistedCounters() {
		if err := database.SaveMetric(name, GetMetricValue(counter)); err != nil {
			log.Errorf("Failed to save metric %s: %v", name, err)
		}
	}
	log.Debug("Metrics saved to database.")
}

func persistedCounters() map[string]prometheus.Counter {
	return map[string]prometheus.Counter{
		"messages_handled":   metrics.MessagesHandled,
		"commands_processed": metrics.CommandsProcessed,
		"alerts_triggered":   metrics.AlertsTriggered,
		"dispatch_failures":  metrics.DispatchFailures,
	}
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
