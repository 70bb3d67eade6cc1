package model

import (
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID             uuid.UUID `json:"id"`
	DisplayName    string    `json:"displayName"`
	EmojiSymbol    string    `json:"emojiSymbol"`
	AccentColorHex string    `json:"accentColorHex"`
	IsSelf         bool      `json:"isSelf"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
	SyncRevision   int64     `json:"syncRevision"`
}
