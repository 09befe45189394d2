package bot

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"warehouse_bot/internal/config"
	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/model"
	"warehouse_bot/internal/storage"
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
	GetFileDirectURL(fileID string) (string, error)
}

// HTTPClient is the interface for downloading files from Telegram.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Warehouse is the slice of the inventory API the bot uses.
type Warehouse interface {
	CheckConnection(ctx context.Context) bool
	CreateCounterparty(ctx context.Context, phone string) (bool, error)
	EachCounterparty(ctx context.Context, fn func(model.Counterparty)) (int, error)
}

// Cycles reports the check loop schedule.
type Cycles interface {
	NextRun() time.Time
}

// Bot is the operator-facing Telegram bot: customer registration,
// status checks, and the admin panel. Alert notifications go through
// the notify dispatcher, not through here.
type Bot struct {
	api       telegramAPI
	cfg       *config.Config
	states    storage.CheckStates
	registry  storage.Registry
	warehouse Warehouse
	cycles    Cycles
	metrics   *metrics.Metrics
	http      HTTPClient
	log       *slog.Logger

	mu      sync.Mutex
	modes   map[int64]bool
	syncing atomic.Bool

	retryBase time.Duration
}

// New creates a Bot on an already connected Telegram client. The client
// is shared with the alert notifier, so the caller owns it.
func New(api *tgbotapi.BotAPI, cfg *config.Config, states storage.CheckStates, registry storage.Registry, wh Warehouse, cycles Cycles, m *metrics.Metrics, log *slog.Logger) *Bot {
	return &Bot{
		api:       api,
		cfg:       cfg,
		states:    states,
		registry:  registry,
		warehouse: wh,
		cycles:    cycles,
		metrics:   m,
		http:      http.DefaultClient,
		log:       log,
		modes:     make(map[int64]bool),
		retryBase: cfg.RetryDelay,
	}
}

// Run starts the bot's long-polling loop, blocking until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			if update.CallbackQuery != nil {
				b.handleCallback(ctx, update.CallbackQuery)
				continue
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			msg := update.Message
			if !b.cfg.IsUserAllowed(msg.From.ID) {
				b.log.Warn("unauthorized access attempt", "user_id", msg.From.ID, "username", msg.From.UserName)
				b.reply(msg.Chat.ID, "🚫 Access denied.")
				continue
			}
			b.handleMessage(ctx, msg)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	b.log.Debug("message", "chat_id", msg.Chat.ID, "user_id", msg.From.ID)

	switch {
	case msg.IsCommand():
		b.handleCommand(ctx, msg)
	case msg.Document != nil:
		b.handleDocument(ctx, msg)
	case msg.Text != "":
		b.handleText(ctx, msg)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.handleStart(chatID)
	case "help":
		b.handleHelp(chatID)
	case "status":
		b.handleStatus(ctx, chatID)
	default:
		b.reply(chatID, "Unknown command. Use /help or the keyboard buttons.")
	}
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID

	switch msg.Text {
	case btnNewCustomer:
		b.enterCustomerMode(chatID)
	case btnStatus:
		b.handleStatus(ctx, chatID)
	case btnHelp:
		b.handleHelp(chatID)
	case btnAdmin:
		b.handleAdminPanel(chatID, msg.From.ID)
	case btnBack:
		b.handleBack(chatID)
	case btnStats:
		b.handleStats(ctx, chatID, msg.From.ID)
	case btnResync:
		b.handleResync(chatID, msg.From.ID)
	case btnClearState:
		b.handleClearState(chatID, msg.From.ID)
	case btnNextCheck:
		b.handleNextCheck(chatID, msg.From.ID)
	default:
		if b.inCustomerMode(chatID) {
			b.handlePhoneInput(ctx, chatID, msg.Text)
			return
		}
		b.reply(chatID, "Use the keyboard buttons or /help.")
	}
}

func (b *Bot) setMode(chatID int64, on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if on {
		b.modes[chatID] = true
	} else {
		delete(b.modes, chatID)
	}
}

func (b *Bot) inCustomerMode(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.modes[chatID]
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyKeyboard(chatID int64, text string, kb tgbotapi.ReplyKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = kb
	b.send(msg)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Error("send message", "error", err)
	}
}

// sendReturning sends a message and reports its ID, 0 when the send
// failed. Used for messages that get edited later.
func (b *Bot) sendReturning(c tgbotapi.Chattable) int {
	msg, err := b.api.Send(c)
	if err != nil {
		b.log.Error("send message", "error", err)
		return 0
	}
	return msg.MessageID
}
