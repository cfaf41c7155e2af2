package auth

import "errors"

// SessionManagerが返すエラーはこの中のどれか（またはインフラの生エラー）。
// HTTPステータスへの変換はhandler側で1か所にまとめる。
var (
	// 入力が不正（必須項目の欠落など）
	ErrValidation         = errors.New("incomplete data")
	ErrInvalidEmailFormat = errors.New("invalid email format")
	ErrPasswordTooShort   = errors.New("password too short")
	ErrWeakPassword       = errors.New("weak password")

	// 競合
	ErrEmailAlreadyExists = errors.New("email already exists")

	// メールまたはパスワードが違う（どちらかは教えない）
	ErrInvalidCredentials = errors.New("invalid credentials")
	// 停止済みユーザー
	ErrUserInactive = errors.New("user is inactive")
	// 署名不一致・期限切れ・ローテーション済み
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")

	ErrUserNotFound = errors.New("user not found")

	// 電話番号を受け取ったがDATA_ENCRYPTION_KEYが無い（設定ミス）
	ErrEncryptionUnavailable = errors.New("data encryption is not configured")
)
