package model

import "time"

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID           string `gorm:"type:uuid;primaryKey" json:"id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	// 電話番号はAES-GCMで暗号化して保存（平文は持たない）
	PhoneCiphertext string     `gorm:"column:phone_ciphertext;type:text" json:"-"`
	PhoneKeyVersion int        `gorm:"column:phone_key_version;not null;default:0" json:"-"`
	Address         string     `gorm:"type:text" json:"address,omitempty"`
	Photo           string     `gorm:"type:text" json:"photo,omitempty"`
	Role            Role       `gorm:"type:varchar(20);not null;default:'USER'" json:"role"`
	IsActive        bool       `gorm:"not null;default:true" json:"isActive"`
	LastLoginAt     *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}
