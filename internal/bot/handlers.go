package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"

	"warehouse_bot/internal/metrics"
	"warehouse_bot/internal/phone"
	"warehouse_bot/internal/sheet"
)

// maxFileSize bounds uploaded spreadsheets.
const maxFileSize = 10 << 20

// uploadBatchSize is how many numbers are processed between progress
// updates during a file upload.
const uploadBatchSize = 20

func (b *Bot) handleStart(chatID int64) {
	b.setMode(chatID, false)
	b.replyKeyboard(chatID, `👋 Welcome to the warehouse assistant bot!

You can:
• Register customers by phone number
• Upload Excel files with numbers
• Check the system status

Use the keyboard below to navigate.`, mainKeyboard())
}

func (b *Bot) handleHelp(chatID int64) {
	b.replyKeyboard(chatID, fmt.Sprintf(`📚 Bot guide

• New customer — registers a customer for each phone number you send
• In customer mode you can also upload an Excel file (.xlsx or .xls),
  numbers are read from the %q column

Commands:
/start — restart the bot
/status — check the warehouse API connection
/help — this guide

Admins get extra tools under Admin panel.`, b.cfg.SheetPhoneColumn), mainKeyboard())
}

func (b *Bot) handleStatus(ctx context.Context, chatID int64) {
	var sb strings.Builder
	if b.warehouse.CheckConnection(ctx) {
		sb.WriteString("🟢 Warehouse API is reachable\n")
	} else {
		sb.WriteString("🔴 Warehouse API is unreachable\n")
	}

	if count, err := b.registry.CountCounterparties(ctx); err != nil {
		b.log.Error("count counterparties", "error", err)
	} else {
		fmt.Fprintf(&sb, "👥 Customers in registry: %d\n", count)
	}

	sb.WriteString("⏳ Next check: " + b.formatNextRun())
	b.replyKeyboard(chatID, sb.String(), mainKeyboard())
}

func (b *Bot) formatNextRun() string {
	next := b.cycles.NextRun()
	if next.IsZero() {
		return "not scheduled yet"
	}
	return next.Format("02.01.2006 15:04:05")
}

func (b *Bot) enterCustomerMode(chatID int64) {
	b.setMode(chatID, true)
	b.replyKeyboard(chatID, `📝 Customer mode is on

You can now:
• Send phone numbers to register customers
• Upload Excel files with numbers

Press Back to leave the mode.`, customerKeyboard())
}

func (b *Bot) handleBack(chatID int64) {
	if b.inCustomerMode(chatID) {
		b.setMode(chatID, false)
		b.replyKeyboard(chatID, "❌ Customer mode is off.", mainKeyboard())
		return
	}
	b.handleStart(chatID)
}

func (b *Bot) handlePhoneInput(ctx context.Context, chatID int64, text string) {
	number, ok := phone.Normalize(text)
	if !ok {
		b.log.Info("unrecognized phone input", "chat_id", chatID)
		b.replyKeyboard(chatID, "🔍 That does not look like a phone number. Send it in any common format.", customerKeyboard())
		return
	}

	if has, err := b.registry.HasCounterparty(ctx, number); err != nil {
		b.log.Error("registry lookup", "phone", number, "error", err)
	} else if has {
		b.metrics.CountRegistration(metrics.RegDuplicate)
		b.replyKeyboard(chatID, fmt.Sprintf("ℹ️ Number %s is already registered.", number), customerKeyboard())
		return
	}

	if !b.createWithRetry(ctx, number) {
		b.metrics.CountRegistration(metrics.RegFailed)
		b.replyKeyboard(chatID, fmt.Sprintf("❌ Could not add number %s.", number), customerKeyboard())
		return
	}

	if err := b.registry.AddCounterparty(ctx, number, "individual"); err != nil {
		b.log.Error("record counterparty", "phone", number, "error", err)
	}
	b.metrics.CountRegistration(metrics.RegAdded)
	b.log.Info("counterparty registered", "phone", number, "chat_id", chatID)
	b.replyKeyboard(chatID, fmt.Sprintf("✅ Number %s added.", number), customerKeyboard())
}

// createWithRetry creates a counterparty, retrying transport errors
// with a backoff. A definitive rejection by the API is not retried.
func (b *Bot) createWithRetry(ctx context.Context, number string) bool {
	attempts := b.cfg.CreateAttempts
	if attempts < 1 {
		attempts = 1
	}

	var created bool
	backoff := retry.WithMaxRetries(uint64(attempts-1), retry.NewFibonacci(b.retryBase))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		ok, err := b.warehouse.CreateCounterparty(ctx, number)
		if err != nil {
			return retry.RetryableError(err)
		}
		created = ok
		return nil
	})
	if err != nil {
		b.log.Error("create counterparty", "phone", number, "error", err)
		return false
	}
	return created
}

func (b *Bot) handleDocument(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	doc := msg.Document

	if !b.inCustomerMode(chatID) {
		b.reply(chatID, "Turn on customer mode first to upload files.")
		return
	}

	b.log.Info("file upload", "chat_id", chatID, "file", doc.FileName, "size", doc.FileSize)

	name := strings.ToLower(doc.FileName)
	if !strings.HasSuffix(name, ".xlsx") && !strings.HasSuffix(name, ".xls") {
		b.replyKeyboard(chatID, "❌ Need an Excel file (.xlsx or .xls).", customerKeyboard())
		return
	}
	if doc.FileSize > maxFileSize {
		b.replyKeyboard(chatID, "❌ File is too big (10 MB max).", customerKeyboard())
		return
	}

	data, err := b.downloadFile(ctx, doc.FileID)
	if err != nil {
		b.log.Error("download upload", "file", doc.FileName, "error", err)
		b.replyKeyboard(chatID, "❌ Could not process the file.", customerKeyboard())
		return
	}

	phones, err := sheet.ExtractPhones(bytes.NewReader(data), b.cfg.SheetPhoneColumn)
	if err != nil {
		b.log.Error("parse upload", "file", doc.FileName, "error", err)
		b.replyKeyboard(chatID, "❌ Could not process the file.", customerKeyboard())
		return
	}
	if len(phones) == 0 {
		b.replyKeyboard(chatID, "🔍 No phone numbers found in the file.", customerKeyboard())
		return
	}

	total := len(phones)
	progressID := b.sendReturning(tgbotapi.NewMessage(chatID, fmt.Sprintf("🔍 Found %d numbers. Processing...", total)))

	st := b.processPhones(ctx, chatID, progressID, phones)

	b.log.Info("file processed",
		"chat_id", chatID,
		"file", doc.FileName,
		"added", st.added,
		"skipped", st.skipped,
		"failed", st.failed)
	b.replyKeyboard(chatID, fmt.Sprintf(`📊 File processed

• Added: %d
• Skipped (already registered): %d
• Failed: %d`, st.added, st.skipped, st.failed), customerKeyboard())
}

type uploadStats struct {
	added, skipped, failed int
}

// processPhones registers the numbers in batches, editing the progress
// message after every batch. Failures inside a batch are recorded, not
// retried.
func (b *Bot) processPhones(ctx context.Context, chatID int64, progressID int, phones []string) uploadStats {
	var st uploadStats
	total := len(phones)

	for start := 0; start < total; start += uploadBatchSize {
		if ctx.Err() != nil {
			break
		}
		end := min(start+uploadBatchSize, total)
		for _, number := range phones[start:end] {
			b.registerOne(ctx, number, &st)
		}
		b.editProgress(chatID, progressID, fmt.Sprintf("⏳ Processed %d/%d...", end, total))
	}
	return st
}

func (b *Bot) registerOne(ctx context.Context, number string, st *uploadStats) {
	if has, err := b.registry.HasCounterparty(ctx, number); err != nil {
		b.log.Error("registry lookup", "phone", number, "error", err)
	} else if has {
		st.skipped++
		b.metrics.CountRegistration(metrics.RegDuplicate)
		return
	}

	ok, err := b.warehouse.CreateCounterparty(ctx, number)
	if err != nil || !ok {
		if err != nil {
			b.log.Warn("create counterparty", "phone", number, "error", err)
		}
		st.failed++
		b.metrics.CountRegistration(metrics.RegFailed)
		return
	}

	if err := b.registry.AddCounterparty(ctx, number, "individual"); err != nil {
		b.log.Warn("record counterparty", "phone", number, "error", err)
	}
	st.added++
	b.metrics.CountRegistration(metrics.RegAdded)
}

func (b *Bot) editProgress(chatID int64, messageID int, text string) {
	if messageID == 0 {
		return
	}
	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, messageID, text)); err != nil {
		b.log.Warn("edit progress message", "error", err)
	}
}

func (b *Bot) downloadFile(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("resolve file url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return nil, fmt.Errorf("file exceeds %d bytes", maxFileSize)
	}
	return data, nil
}
