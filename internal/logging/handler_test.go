// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package logging_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"

	"github.com/compassioncourse/ccms-go/internal/logging"
	"github.com/compassioncourse/ccms-go/internal/model"
	"github.com/compassioncourse/ccms-go/internal/store"
	"github.com/compassioncourse/ccms-go/internal/testutil"
)

func newTestLogger(t *testing.T) (*slog.Logger, *sql.DB) {
	t.Helper()

	db, cleanup := testutil.TestDB(t)
	t.Cleanup(cleanup)

	inner := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})
	return slog.New(logging.NewEventLogHandler(inner, db)), db
}

func countEvents(t *testing.T, db *sql.DB) int64 {
	t.Helper()
	count, err := store.New(db).CountEvents(context.Background())
	if err != nil {
		t.Fatalf("CountEvents: %v", err)
	}
	return count
}

func TestWarningsMirroredToEventLog(t *testing.T) {
	logger, db := newTestLogger(t)

	logger.Warn("account locked", "user_id", 7)
	logger.Error("content save failed", "content_id", 3)

	if got := countEvents(t, db); got != 2 {
		t.Errorf("event count = %d, want 2", got)
	}
}

func TestInfoNotMirrored(t *testing.T) {
	logger, db := newTestLogger(t)

	logger.Info("server starting")
	logger.Debug("noise")

	if got := countEvents(t, db); got != 0 {
		t.Errorf("event count = %d, want 0", got)
	}
}

func TestEventCategoryInference(t *testing.T) {
	logger, db := newTestLogger(t)

	logger.Warn("login rate limit exceeded")
	logger.Warn("content deleted")
	logger.Warn("disk nearly full")
	logger.Warn("explicit override", "category", model.EventCategoryUser)

	rows := map[string]int{}
	r, err := db.Query(`SELECT category, COUNT(1) FROM events GROUP BY category`)
	if err != nil {
		t.Fatalf("querying events: %v", err)
	}
	defer r.Close()
	for r.Next() {
		var category string
		var n int
		if err := r.Scan(&category, &n); err != nil {
			t.Fatalf("scanning: %v", err)
		}
		rows[category] = n
	}
	if err := r.Err(); err != nil {
		t.Fatalf("iterating: %v", err)
	}

	want := map[string]int{
		model.EventCategoryAuth:    1,
		model.EventCategoryContent: 1,
		model.EventCategorySystem:  1,
		model.EventCategoryUser:    1,
	}
	for category, n := range want {
		if rows[category] != n {
			t.Errorf("category %s count = %d, want %d", category, rows[category], n)
		}
	}
}
