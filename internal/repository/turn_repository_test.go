package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lark-relay-go/internal/model"
)

// newTestDB 打开一个进程内的 sqlite 库。限制为单连接，
// 保证 :memory: 库在整个测试期间都是同一个。
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&model.ConversationTurn{}, &model.SeenEvent{}))
	return db
}

// appendSized appends a turn whose question+answer length adds up to size.
func appendSized(t *testing.T, repo TurnRepository, sessionID string, size int) {
	t.Helper()
	question := strings.Repeat("q", size/2)
	answer := strings.Repeat("a", size-size/2)
	require.NoError(t, repo.Append(context.Background(), sessionID, question, answer))
}

func totalSize(turns []model.ConversationTurn) int {
	total := 0
	for _, turn := range turns {
		total += turn.Size
	}
	return total
}

func TestAppend_EmptyQuestionOrAnswer(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.ErrorIs(t, repo.Append(ctx, "s1", "", "answer"), ErrEmptyMessage)
	require.ErrorIs(t, repo.Append(ctx, "s1", "question", ""), ErrEmptyMessage)

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestAppend_ComputesSize(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s1", "你好", "world"))

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	// len 按字节计，多字节字符也一并算进去
	require.Equal(t, len("你好")+len("world"), history[0].Size)
}

func TestHistory_ChronologicalOrder(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s1", "q1", "a1"))
	require.NoError(t, repo.Append(ctx, "s1", "q2", "a2"))
	require.NoError(t, repo.Append(ctx, "s1", "q3", "a3"))

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.Equal(t, []string{"q1", "q2", "q3"}, []string{history[0].Question, history[1].Question, history[2].Question})
	for i := 1; i < len(history); i++ {
		require.False(t, history[i].CreatedAt.Before(history[i-1].CreatedAt))
	}
}

func TestHistory_IsolatedAcrossSessions(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "sA", "qA", "aA"))
	require.NoError(t, repo.Append(ctx, "sB", "qB", "aB"))

	historyA, err := repo.History(ctx, "sA")
	require.NoError(t, err)
	require.Len(t, historyA, 1)
	require.Equal(t, "qA", historyA[0].Question)

	historyB, err := repo.History(ctx, "sB")
	require.NoError(t, err)
	require.Len(t, historyB, 1)
	require.Equal(t, "qB", historyB[0].Question)
}

func TestTrim_DropsOldestWhenOverBudget(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	// 从最新往回累计：500，1100 > 1024，旧的 600 那轮被删掉
	appendSized(t, repo, "s1", 600)
	appendSized(t, repo, "s1", 500)

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, 500, history[0].Size)
}

func TestTrim_KeepsCumulativeExactlyAtBudget(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	// 500 + 524 = 1024，正好等于预算，不触发删除
	appendSized(t, repo, "s1", 524)
	appendSized(t, repo, "s1", 500)

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	require.Equal(t, 1024, totalSize(history))
}

func TestTrim_SingleOversizedTurnDeletesEverything(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	appendSized(t, repo, "s1", 300)
	// 这一轮自己就超预算，连同更旧的轮次一起被删
	appendSized(t, repo, "s1", 1100)

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, history)
}

func TestTrim_KeepsMostRecentTurns(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		appendSized(t, repo, "s1", 300)
	}

	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	require.LessOrEqual(t, totalSize(history), 1024)
}

func TestTrim_BudgetInvariantAfterEveryAppend(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	sizes := []int{100, 900, 400, 50, 1024, 700}
	for _, size := range sizes {
		appendSized(t, repo, "s1", size)

		history, err := repo.History(ctx, "s1")
		require.NoError(t, err)
		require.LessOrEqual(t, totalSize(history), 1024)
	}
}

func TestClear_Idempotent(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "s1", "q1", "a1"))
	require.NoError(t, repo.Append(ctx, "s1", "q2", "a2"))

	require.NoError(t, repo.Clear(ctx, "s1"))
	history, err := repo.History(ctx, "s1")
	require.NoError(t, err)
	require.Empty(t, history)

	// 再清一次也不报错
	require.NoError(t, repo.Clear(ctx, "s1"))
	// 不存在的会话同样幂等
	require.NoError(t, repo.Clear(ctx, "never-seen"))
}

func TestClear_DoesNotTouchOtherSessions(t *testing.T) {
	repo := NewTurnRepository(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, "sA", "qA", "aA"))
	require.NoError(t, repo.Append(ctx, "sB", "qB", "aB"))

	require.NoError(t, repo.Clear(ctx, "sA"))

	historyB, err := repo.History(ctx, "sB")
	require.NoError(t, err)
	require.Len(t, historyB, 1)
}
