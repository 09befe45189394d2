package notify

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"warehouse_bot/internal/metrics"
)

// Sender is the part of the Telegram API the notifier uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Notifier delivers alert batches to a single chat. Batches are split
// into chunks that fit the transport limit, sends are paced by a rate
// limiter, and consecutive batches keep a configurable gap so category
// groups arrive visually separated.
type Notifier struct {
	api      Sender
	chatID   int64
	limit    int
	limiter  *rate.Limiter
	groupGap time.Duration
	metrics  *metrics.Metrics
	log      *slog.Logger

	mu        sync.Mutex
	lastBatch time.Time
}

// New creates a Notifier sending to chatID. limit is the per-message
// ceiling in runes, perSecond caps the send rate.
func New(api Sender, chatID int64, limit, perSecond int, groupGap time.Duration, m *metrics.Metrics, log *slog.Logger) *Notifier {
	if limit <= 0 {
		limit = 4096
	}
	if perSecond <= 0 {
		perSecond = 1
	}
	return &Notifier{
		api:      api,
		chatID:   chatID,
		limit:    limit,
		limiter:  rate.NewLimiter(rate.Limit(perSecond), 1),
		groupGap: groupGap,
		metrics:  m,
		log:      log,
	}
}

// Send delivers one category's alerts under a common header. Delivery is
// best effort: problems are logged and reported as false, never raised.
// An empty alert list sends nothing.
func (n *Notifier) Send(ctx context.Context, header string, alerts []string) bool {
	if len(alerts) == 0 {
		return false
	}

	n.waitBatchGap(ctx)

	chunks := packChunks(header, alerts, n.limit)
	for i, chunk := range chunks {
		if err := n.limiter.Wait(ctx); err != nil {
			n.log.Warn("alert send cancelled", "chunks_left", len(chunks)-i)
			return false
		}
		msg := tgbotapi.NewMessage(n.chatID, chunk)
		msg.DisableWebPagePreview = true
		if _, err := n.api.Send(msg); err != nil {
			n.log.Error("send alert chunk", "chunk", i+1, "chunks", len(chunks), "error", err)
			n.metrics.SendFailures.Inc()
			return false
		}
	}

	n.mu.Lock()
	n.lastBatch = time.Now()
	n.mu.Unlock()
	return true
}

// waitBatchGap pauses until groupGap has passed since the previous
// batch finished.
func (n *Notifier) waitBatchGap(ctx context.Context) {
	n.mu.Lock()
	last := n.lastBatch
	n.mu.Unlock()

	if last.IsZero() || n.groupGap <= 0 {
		return
	}
	remaining := n.groupGap - time.Since(last)
	if remaining <= 0 {
		return
	}

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// packChunks renders a header plus alerts into as few messages as
// possible, each at most limit runes. The first chunk carries the
// header, continuation chunks do not. Alerts are kept whole unless one
// alone exceeds the limit, in which case it is split at line boundaries.
func packChunks(header string, alerts []string, limit int) []string {
	full := header + "\n\n" + strings.Join(alerts, "\n\n")
	if runeLen(full) <= limit {
		return []string{full}
	}

	var pieces []string
	for _, alert := range alerts {
		if runeLen(alert)+2 > limit {
			pieces = append(pieces, splitByLines(alert, limit-2)...)
			continue
		}
		pieces = append(pieces, alert)
	}

	var chunks []string
	cur := header + "\n\n"
	for _, piece := range pieces {
		if cur != "" && runeLen(cur)+runeLen(piece)+2 > limit {
			if c := strings.TrimSpace(cur); c != "" {
				chunks = append(chunks, c)
			}
			cur = ""
		}
		cur += piece + "\n\n"
	}
	if c := strings.TrimSpace(cur); c != "" {
		chunks = append(chunks, c)
	}
	return chunks
}

// splitByLines breaks an oversized alert into parts of at most budget
// runes, cutting at line boundaries. A single line longer than the
// budget gets hard cuts as a last resort.
func splitByLines(s string, budget int) []string {
	var parts []string
	cur := ""
	for _, line := range strings.Split(s, "\n") {
		for runeLen(line) > budget {
			if cur != "" {
				parts = append(parts, cur)
				cur = ""
			}
			runes := []rune(line)
			parts = append(parts, string(runes[:budget]))
			line = string(runes[budget:])
		}
		switch {
		case line == "":
			continue
		case cur == "":
			cur = line
		case runeLen(cur)+1+runeLen(line) <= budget:
			cur += "\n" + line
		default:
			parts = append(parts, cur)
			cur = line
		}
	}
	if cur != "" {
		parts = append(parts, cur)
	}
	return parts
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
