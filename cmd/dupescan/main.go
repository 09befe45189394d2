// Command dupescan lists counterparties that share a phone number or
// name. Registrations go through the bot's duplicate check, but records
// created by hand in the warehouse UI bypass it; this reports what
// slipped through so an operator can merge them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"warehouse_bot/internal/config"
	"warehouse_bot/internal/model"
	"warehouse_bot/internal/moysklad"
	"warehouse_bot/internal/phone"
)

func main() {
	minGroup := flag.Int("min-group", 2, "report groups with at least this many records")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	client := moysklad.New(&http.Client{Timeout: cfg.APITimeout}, moysklad.Config{
		BaseURL:       cfg.APIBaseURL,
		Token:         cfg.MoySkladToken,
		PageLimit:     cfg.APIPageLimit,
		PageDelay:     cfg.APIPageDelay,
		FetchAttempts: cfg.FetchAttempts,
	}, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Counterparty names are phone numbers for bot-registered customers,
	// so phone-equal records group together even when formatted apart.
	groups := make(map[string][]string)
	total, err := client.EachCounterparty(ctx, func(cp model.Counterparty) {
		key, ok := phone.Normalize(cp.Name)
		if !ok {
			key = strings.ToLower(strings.TrimSpace(cp.Name))
		}
		if key == "" {
			return
		}
		groups[key] = append(groups[key], fmt.Sprintf("%s (%s)", cp.Name, cp.Kind))
	})
	if err != nil {
		log.Fatalf("list counterparties: %v", err)
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fmt.Printf("Checked %d counterparties.\n", total)
	found := 0
	for _, key := range keys {
		entries := groups[key]
		if len(entries) < *minGroup {
			continue
		}
		found++
		fmt.Printf("\n%s: %d records\n", key, len(entries))
		for _, entry := range entries {
			fmt.Printf("  %s\n", entry)
		}
	}
	if found == 0 {
		fmt.Println("No duplicates found.")
	}
}
