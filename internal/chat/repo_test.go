package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// one shared-cache memory db per test, so tests cannot see each other's rows
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Message{}, &ReplyArchive{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func mustInsert(t *testing.T, repo *Repo, userID, text string) *Message {
	t.Helper()
	m := &Message{
		UserID: userID,
		Text:   text,
		AI:     AIResult{Emotion: "neutral", Sentiment: "positive"},
	}
	if err := repo.Insert(context.Background(), m); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return m
}

func TestInsertAssignsSequentialIDs(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	first := mustInsert(t, repo, "u1", "hello")
	second := mustInsert(t, repo, "u2", "world")
	third := mustInsert(t, repo, "u1", "again")

	if first.ID == 0 {
		t.Fatalf("expected first id to be assigned")
	}
	if second.ID != first.ID+1 || third.ID != second.ID+1 {
		t.Fatalf("expected sequential ids, got %d %d %d", first.ID, second.ID, third.ID)
	}
	if first.ReplySource != ReplySourceNone || first.Reply != "" {
		t.Fatalf("expected fresh message without reply, got source=%q reply=%q", first.ReplySource, first.Reply)
	}
}

func TestSetReplyBotWinsOnlyWhileEmpty(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	m := mustInsert(t, repo, "u1", "help")

	won, err := repo.SetReply(context.Background(), m.ID, "bot says hi", ReplySourceBot)
	if err != nil {
		t.Fatalf("set reply: %v", err)
	}
	if !won {
		t.Fatalf("expected bot to win on empty reply")
	}

	won, err = repo.SetReply(context.Background(), m.ID, "bot again", ReplySourceBot)
	if err != nil {
		t.Fatalf("set reply: %v", err)
	}
	if won {
		t.Fatalf("expected second bot write to lose")
	}

	got, err := repo.Get(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Reply != "bot says hi" || got.ReplySource != ReplySourceBot {
		t.Fatalf("unexpected state: reply=%q source=%q", got.Reply, got.ReplySource)
	}
}

func TestSetReplyBotNeverOverwritesAdmin(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	m := mustInsert(t, repo, "u1", "help")

	if _, err := repo.SetReply(context.Background(), m.ID, "human here", ReplySourceAdmin); err != nil {
		t.Fatalf("admin reply: %v", err)
	}

	won, err := repo.SetReply(context.Background(), m.ID, "bot late", ReplySourceBot)
	if err != nil {
		t.Fatalf("bot reply: %v", err)
	}
	if won {
		t.Fatalf("expected bot to lose against existing admin reply")
	}

	got, _ := repo.Get(context.Background(), m.ID)
	if got.Reply != "human here" || got.ReplySource != ReplySourceAdmin {
		t.Fatalf("admin reply was clobbered: reply=%q source=%q", got.Reply, got.ReplySource)
	}
}

func TestSetReplyAdminOverwritesBot(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	m := mustInsert(t, repo, "u1", "help")

	if _, err := repo.SetReply(context.Background(), m.ID, "bot first", ReplySourceBot); err != nil {
		t.Fatalf("bot reply: %v", err)
	}
	won, err := repo.SetReply(context.Background(), m.ID, "human override", ReplySourceAdmin)
	if err != nil {
		t.Fatalf("admin reply: %v", err)
	}
	if !won {
		t.Fatalf("expected admin overwrite to be accepted")
	}

	got, _ := repo.Get(context.Background(), m.ID)
	if got.Reply != "human override" || got.ReplySource != ReplySourceAdmin {
		t.Fatalf("unexpected state after overwrite: reply=%q source=%q", got.Reply, got.ReplySource)
	}
}

func TestSetReplyAdminUnknownID(t *testing.T) {
	repo := NewRepo(openTestDB(t))

	_, err := repo.SetReply(context.Background(), 999, "hello", ReplySourceAdmin)
	if err != gorm.ErrRecordNotFound {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestClaimPendingForUserExactlyOnce(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a1 := mustInsert(t, repo, "alice", "first")
	mustInsert(t, repo, "bob", "other user")
	a2 := mustInsert(t, repo, "alice", "second")

	// nothing replied yet: the user feed sees nothing
	batch, err := repo.ClaimPendingForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty claim before replies, got %d", len(batch))
	}

	if _, err := repo.SetReply(ctx, a1.ID, "r1", ReplySourceBot); err != nil {
		t.Fatalf("set reply: %v", err)
	}
	if _, err := repo.SetReply(ctx, a2.ID, "r2", ReplySourceAdmin); err != nil {
		t.Fatalf("set reply: %v", err)
	}

	batch, err = repo.ClaimPendingForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 2 || batch[0].ID != a1.ID || batch[1].ID != a2.ID {
		t.Fatalf("expected [%d %d] in id order, got %v", a1.ID, a2.ID, messageIDs(batch))
	}

	// a second claim must not return the same ids again
	batch, err = repo.ClaimPendingForUser(ctx, "alice")
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no duplicates, got %v", messageIDs(batch))
	}
}

func TestClaimPendingForAdminSeesAllMessages(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	m1 := mustInsert(t, repo, "alice", "first")
	m2 := mustInsert(t, repo, "bob", "second")

	batch, err := repo.ClaimPendingForAdmin(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	// admin sees messages before any reply exists
	if len(batch) != 2 || batch[0].ID != m1.ID || batch[1].ID != m2.ID {
		t.Fatalf("expected both messages in id order, got %v", messageIDs(batch))
	}

	batch, err = repo.ClaimPendingForAdmin(ctx)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected no duplicates, got %v", messageIDs(batch))
	}

	m3 := mustInsert(t, repo, "alice", "third")
	batch, _ = repo.ClaimPendingForAdmin(ctx)
	if len(batch) != 1 || batch[0].ID != m3.ID {
		t.Fatalf("expected only the new message, got %v", messageIDs(batch))
	}
}

func TestAdminOverwriteDoesNotRedeliver(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	m := mustInsert(t, repo, "alice", "hello")
	if _, err := repo.SetReply(ctx, m.ID, "bot reply", ReplySourceBot); err != nil {
		t.Fatalf("set reply: %v", err)
	}
	if batch, _ := repo.ClaimPendingForUser(ctx, "alice"); len(batch) != 1 {
		t.Fatalf("expected one delivery, got %d", len(batch))
	}

	// admin overwrites the bot version; the delivery flag stays set
	if _, err := repo.SetReply(ctx, m.ID, "human version", ReplySourceAdmin); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if batch, _ := repo.ClaimPendingForUser(ctx, "alice"); len(batch) != 0 {
		t.Fatalf("expected no redelivery after overwrite, got %d", len(batch))
	}
}

func TestInsertReplyArchiveIgnoresDuplicates(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	a := &ReplyArchive{ID: "01HXAMPLEULID0000000000000", MessageID: 1, UserID: "alice", Source: ReplySourceBot, Reply: "hi"}
	if err := repo.InsertReplyArchive(ctx, a); err != nil {
		t.Fatalf("insert archive: %v", err)
	}
	if err := repo.InsertReplyArchive(ctx, a); err != nil {
		t.Fatalf("expected duplicate insert to be ignored, got %v", err)
	}
}
