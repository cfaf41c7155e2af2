package repository

import (
	"boilerplate/internal/domain/model"
	"context"
	"errors"
)

var ErrRefreshTokenNotFound = errors.New("refresh token not found")

// token_hashのunique違反
var ErrDuplicateRefreshToken = errors.New("refresh token already exists")

// リフレッシュトークン行の保存・照合・削除
type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	// user_idとtoken_hashの両方が一致する行を返す。無ければErrRefreshTokenNotFound。
	FindByUserAndHash(ctx context.Context, userID string, tokenHash string) (*model.RefreshToken, error)
	// 指定ユーザーの行を全削除する。0件でもエラーにしない。
	DeleteAllByUserID(ctx context.Context, userID string) (int64, error)
	CountByUserID(ctx context.Context, userID string) (int64, error)
}
