package repository

import (
	"boilerplate/internal/domain/model"
	"context"
	"errors"
	"time"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// emailのunique違反
var ErrEmailTaken = errors.New("email already taken")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（email重複はErrEmailTaken）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。無ければErrUserNotFound。
	FindByID(ctx context.Context, userID string) (*model.User, error)
	//メールからユーザーを一件取得する。無ければErrUserNotFound。
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	// 最終ログイン時刻の更新
	TouchLastLogin(ctx context.Context, userID string, at time.Time) error
}
