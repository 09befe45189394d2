package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"warehouse_bot/internal/model"
	"warehouse_bot/internal/phone"
)

// Callback actions used by the admin confirmation keyboards.
const (
	cbResync     = "resync"
	cbClearState = "clear_state"
	cbNoop       = "noop"
)

func (b *Bot) requireAdmin(chatID, userID int64) bool {
	if b.cfg.IsAdmin(userID) {
		return true
	}
	b.log.Warn("admin action denied", "user_id", userID)
	b.reply(chatID, "🚫 You do not have access to the admin panel.")
	return false
}

func (b *Bot) handleAdminPanel(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	b.replyKeyboard(chatID, "🔐 Admin panel", adminKeyboard())
}

func (b *Bot) handleStats(ctx context.Context, chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}

	added, duplicate, failed := b.metrics.RegistrationTotals()

	registrySize := "unknown"
	if count, err := b.registry.CountCounterparties(ctx); err != nil {
		b.log.Error("count counterparties", "error", err)
	} else {
		registrySize = fmt.Sprintf("%d", count)
	}

	b.replyKeyboard(chatID, fmt.Sprintf(`📊 Bot statistics

• Registrations added: %d
• Duplicates skipped: %d
• Failed registrations: %d
• Customers in registry: %s
• Next check: %s`, added, duplicate, failed, registrySize, b.formatNextRun()), adminKeyboard())
}

func (b *Bot) handleNextCheck(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	b.replyKeyboard(chatID, "⏳ Next check: "+b.formatNextRun(), adminKeyboard())
}

func (b *Bot) handleResync(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Reload the customer registry from the warehouse API? This replaces the local copy.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, resync", cbResync+":1"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop+":0"),
		),
	)
	b.send(msg)
}

func (b *Bot) handleClearState(chatID, userID int64) {
	if !b.requireAdmin(chatID, userID) {
		return
	}
	msg := tgbotapi.NewMessage(chatID, "Clear the saved check state? Every active alert fires again on the next cycle.")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Yes, clear", cbClearState+":1"),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", cbNoop+":0"),
		),
	)
	b.send(msg)
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	ack := tgbotapi.NewCallback(cb.ID, "")
	if _, err := b.api.Send(ack); err != nil {
		b.log.Error("send callback ack", "error", err)
	}

	if cb.Message == nil || cb.From == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	parts := strings.SplitN(cb.Data, ":", 2)
	if len(parts) != 2 {
		return
	}
	action := parts[0]

	// Every callback button belongs to an admin confirmation.
	if !b.cfg.IsAdmin(cb.From.ID) {
		b.log.Warn("callback denied", "action", action, "user_id", cb.From.ID)
		return
	}

	b.log.Info("callback", "action", action, "chat_id", chatID, "user_id", cb.From.ID)

	switch action {
	case cbResync:
		go b.runResync(ctx, chatID)
	case cbClearState:
		b.runClearState(ctx, chatID)
	case cbNoop:
		b.reply(chatID, "Cancelled.")
	}
}

// ResyncRegistry reloads the customer registry from the warehouse API,
// replacing the local copy. It reports how many records were fetched
// and how many phones were stored.
func (b *Bot) ResyncRegistry(ctx context.Context) (fetched, stored int, err error) {
	phones := make(map[string]string)
	fetched, err = b.warehouse.EachCounterparty(ctx, func(cp model.Counterparty) {
		if number, ok := phone.Normalize(cp.Name); ok {
			phones[number] = cp.Kind
		}
	})
	if err != nil {
		return 0, 0, fmt.Errorf("list counterparties: %w", err)
	}
	if err := b.registry.ReplaceCounterparties(ctx, phones); err != nil {
		return 0, 0, fmt.Errorf("replace counterparties: %w", err)
	}
	return fetched, len(phones), nil
}

func (b *Bot) runResync(ctx context.Context, chatID int64) {
	if !b.syncing.CompareAndSwap(false, true) {
		b.reply(chatID, "⏳ A resync is already running.")
		return
	}
	defer b.syncing.Store(false)

	b.reply(chatID, "🔄 Reloading the customer registry...")
	fetched, stored, err := b.ResyncRegistry(ctx)
	if err != nil {
		b.log.Error("resync registry", "error", err)
		b.reply(chatID, "❌ Could not reload the registry.")
		return
	}
	b.log.Info("registry resynced", "fetched", fetched, "stored", stored)
	b.reply(chatID, fmt.Sprintf("✅ Registry reloaded: %d customers (%d records fetched).", stored, fetched))
}

func (b *Bot) runClearState(ctx context.Context, chatID int64) {
	if err := b.states.ClearStockStates(ctx); err != nil {
		b.log.Error("clear stock states", "error", err)
		b.reply(chatID, "❌ Could not clear the check state.")
		return
	}
	if err := b.states.ClearExpirationStates(ctx); err != nil {
		b.log.Error("clear expiration states", "error", err)
		b.reply(chatID, "❌ Could not clear the check state.")
		return
	}
	b.log.Info("check state cleared", "chat_id", chatID)
	b.reply(chatID, "✅ Check state cleared. The next cycle reports from scratch.")
}
