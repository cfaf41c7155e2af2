package model

import "time"

// APIレスポンスごとに1件残すリクエストログ。
// 「誰が」「どこから」「何を叩いて」「何が返ったか」を残す。
type RequestLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	//未認証ならnil
	UserID *string `gorm:"type:uuid;index" json:"userId"`
	Email  *string `gorm:"type:varchar(255)" json:"email"`
	Role   *string `gorm:"type:varchar(20)" json:"role"`

	IP     string `gorm:"type:varchar(64)" json:"ip"`
	Method string `gorm:"type:varchar(10);not null;index" json:"method"`
	Status int    `gorm:"not null;index" json:"status"`
	Host   string `gorm:"type:varchar(255)" json:"host"`
	Path   string `gorm:"type:text;not null" json:"path"`

	//エラー時のdetailなど。JSON文字列で保存する。
	Data string `gorm:"type:text" json:"data"`

	CreatedAt time.Time `gorm:"not null;index" json:"createdAt"`
}
