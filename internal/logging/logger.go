// Package logging はプロジェクト共通の構造化ログのインターフェース。
package logging

import "context"

// Loggerはcontext付きの構造化ロガー。argsはkey-valueの組で渡す。
//
//	log.Info(ctx, "server started", "addr", addr)
type Logger interface {
	Debug(ctx context.Context, msg string, args ...any)
	Info(ctx context.Context, msg string, args ...any)
	Warn(ctx context.Context, msg string, args ...any)
	Error(ctx context.Context, msg string, args ...any)

	// Withは常に与えたkey-valueを付けて出力する子ロガーを返す。
	With(args ...any) Logger
}
