package entity

import (
	"time"
)

// Room is the directory record for a chat room. The slug is the identity;
// the password digest is immutable once the row exists.
type Room struct {
	Slug           string    `gorm:"primaryKey;size:64"`
	PasswordDigest string    `gorm:"not null;size:64"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}
