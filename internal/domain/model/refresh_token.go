package model

import "time"

// 1ユーザーにつき有効な行は常に1つ（login/refreshで全削除してから1件作る）
type RefreshToken struct {
	ID        string    `json:"id" gorm:"type:uuid;primaryKey"`
	UserID    string    `json:"userId" gorm:"type:uuid;not null;index"`
	TokenHash string    `json:"-" gorm:"not null;uniqueIndex"`
	ExpiresAt time.Time `json:"expiresAt" gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null"`
}
