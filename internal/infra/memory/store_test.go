package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"boilerplate/internal/domain/model"
	repo "boilerplate/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsers_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.Users().Create(ctx, &model.User{ID: "u-1", Email: "a@example.com"}))

	u, err := s.Users().FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)

	_, err = s.Users().FindByID(ctx, "nope")
	assert.ErrorIs(t, err, repo.ErrUserNotFound)

	// email重複
	err = s.Users().Create(ctx, &model.User{ID: "u-2", Email: "a@example.com"})
	assert.ErrorIs(t, err, repo.ErrEmailTaken)
}

func TestRefreshTokens_DeleteAll(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rt := s.RefreshTokens()

	require.NoError(t, rt.Create(ctx, &model.RefreshToken{ID: "t1", UserID: "u-1", TokenHash: "h1"}))
	require.NoError(t, rt.Create(ctx, &model.RefreshToken{ID: "t2", UserID: "u-1", TokenHash: "h2"}))
	require.NoError(t, rt.Create(ctx, &model.RefreshToken{ID: "t3", UserID: "u-2", TokenHash: "h3"}))

	n, err := rt.DeleteAllByUserID(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	cnt, _ := rt.CountByUserID(ctx, "u-2")
	assert.Equal(t, int64(1), cnt)

	_, err = rt.FindByUserAndHash(ctx, "u-1", "h1")
	assert.ErrorIs(t, err, repo.ErrRefreshTokenNotFound)

	// 他人のhashでは見つからない
	_, err = rt.FindByUserAndHash(ctx, "u-1", "h3")
	assert.ErrorIs(t, err, repo.ErrRefreshTokenNotFound)
}

// fnがエラーなら削除も作成も戻る
func TestWithinTx_Rollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.RefreshTokens().Create(ctx, &model.RefreshToken{ID: "t1", UserID: "u-1", TokenHash: "h1"}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.RefreshTokens().DeleteAllByUserID(ctx, "u-1"); err != nil {
			return err
		}
		if err := r.Users().Create(ctx, &model.User{ID: "u-9", Email: "x@example.com"}); err != nil {
			return err
		}
		if err := r.AuditLogs().Create(ctx, model.AuditLog{ActorUserID: "a-1", ResourceID: "u-1"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.RefreshTokens().FindByUserAndHash(ctx, "u-1", "h1")
	assert.NoError(t, err)
	_, err = s.Users().FindByID(ctx, "u-9")
	assert.ErrorIs(t, err, repo.ErrUserNotFound)

	audits, err := s.AuditLogs().List(ctx, repo.AuditLogFilter{})
	require.NoError(t, err)
	assert.Empty(t, audits)
}

func TestWithinTx_Commit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	err := s.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.RefreshTokens().Create(ctx, &model.RefreshToken{ID: "t1", UserID: "u-1", TokenHash: "h1"})
	})
	require.NoError(t, err)

	n, _ := s.RefreshTokens().CountByUserID(ctx, "u-1")
	assert.Equal(t, int64(1), n)
}

func TestRequestLogs_ListFilterAndPage(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	logs := s.RequestLogs()

	uid := "u-1"
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		require.NoError(t, logs.Create(ctx, model.RequestLog{UserID: &uid, Method: "GET", Status: 200, Path: "/a", CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	require.NoError(t, logs.Create(ctx, model.RequestLog{Method: "POST", Status: 401, Path: "/b", CreatedAt: base}))

	got, total, err := logs.List(ctx, repo.RequestLogFilter{UserID: &uid, Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, got, 2)
	// 新しい順: ID 5,4,3... のoffset1
	assert.Equal(t, int64(4), got[0].ID)
	assert.Equal(t, int64(3), got[1].ID)

	status := 401
	got, total, err = logs.List(ctx, repo.RequestLogFilter{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "/b", got[0].Path)

	got, _, err = logs.List(ctx, repo.RequestLogFilter{Offset: 100})
	require.NoError(t, err)
	assert.Empty(t, got)
}
