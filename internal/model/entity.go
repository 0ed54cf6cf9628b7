package model

import (
	"time"
)

// User 사용자 (토큰 검증 후 조회되는 신원)
type User struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Username  string    `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Color     string    `gorm:"type:varchar(20)" json:"color"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (User) TableName() string {
	return "users"
}

// Board 화이트보드 문서
type Board struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Name      string    `gorm:"type:varchar(200);not null" json:"name"`
	Elements  []Element `gorm:"type:jsonb;serializer:json;not null" json:"elements"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updatedAt"`
}

func (Board) TableName() string {
	return "boards"
}

// Clone 요소 배열까지 복사
func (b *Board) Clone() *Board {
	if b == nil {
		return nil
	}
	out := *b
	out.Elements = CloneElements(b.Elements)
	return &out
}

// Touch updatedAt을 now 이후로 전진 (같은 시각이어도 증가)
func (b *Board) Touch(now time.Time) {
	if !now.After(b.UpdatedAt) {
		now = b.UpdatedAt.Add(time.Millisecond)
	}
	b.UpdatedAt = now
}

// Sender 메시지 발신자 (연결 기준)
type Sender struct {
	ID    string `gorm:"type:varchar(64)" json:"id"`
	Name  string `gorm:"type:varchar(100)" json:"name"`
	Color string `gorm:"type:varchar(20)" json:"color"`
}

// ChatMessage 보드 채팅 메시지
type ChatMessage struct {
	ID        string    `gorm:"primaryKey;type:varchar(64)" json:"id"`
	BoardID   string    `gorm:"type:varchar(64);not null;index:idx_messages_board_timestamp,priority:1" json:"boardId"`
	Sender    Sender    `gorm:"embedded;embeddedPrefix:sender_" json:"sender"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	Timestamp time.Time `gorm:"not null;index:idx_messages_board_timestamp,priority:2" json:"timestamp"`
}

func (ChatMessage) TableName() string {
	return "messages"
}
