package repos

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/scholarport/backend/internal/pkg/logger"
	"github.com/scholarport/backend/internal/types"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "repos_test.db")
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&types.ChatMessage{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return gdb
}

func repoLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("failed to build logger: %v", err)
	}
	return log
}

func TestListByConversationStableOrderOnEqualTimestamps(t *testing.T) {
	repo := NewChatMessageRepo(testDB(t), repoLogger(t))
	ctx := context.Background()
	convID := uuid.New()
	tick := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	// One coarse clock tick covers the welcome and two full turns.
	// Inserted out of order on purpose.
	entries := []struct {
		sender string
		step   int
	}{
		{types.SenderUser, 2},
		{types.SenderBot, 3},
		{types.SenderBot, 1},
		{types.SenderUser, 1},
		{types.SenderBot, 2},
	}
	for _, e := range entries {
		if _, err := repo.Append(ctx, nil, &types.ChatMessage{
			ConversationID: convID,
			Sender:         e.sender,
			MessageText:    "m",
			StepNumber:     e.step,
			Timestamp:      tick,
		}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	// A later message sorts after the tied block even with a low step.
	if _, err := repo.Append(ctx, nil, &types.ChatMessage{
		ConversationID: convID,
		Sender:         types.SenderUser,
		MessageText:    "late",
		StepNumber:     1,
		Timestamp:      tick.Add(time.Second),
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	// Another conversation in the same table must not leak in.
	if _, err := repo.Append(ctx, nil, &types.ChatMessage{
		ConversationID: uuid.New(),
		Sender:         types.SenderBot,
		MessageText:    "other conversation",
		StepNumber:     1,
		Timestamp:      tick,
	}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	got, err := repo.ListByConversation(ctx, nil, convID)
	if err != nil {
		t.Fatalf("ListByConversation failed: %v", err)
	}
	want := []struct {
		sender string
		step   int
	}{
		{types.SenderBot, 1},
		{types.SenderUser, 1},
		{types.SenderBot, 2},
		{types.SenderUser, 2},
		{types.SenderBot, 3},
		{types.SenderUser, 1},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d messages, want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Sender != w.sender || got[i].StepNumber != w.step {
			t.Fatalf("position %d is %s/step %d, want %s/step %d", i, got[i].Sender, got[i].StepNumber, w.sender, w.step)
		}
	}
}
