package models

import (
	"time"

	"github.com/google/uuid"
)

type ChannelSource string

const (
	ChannelSourceFacebook ChannelSource = "Facebook"
	ChannelSourceTiktok   ChannelSource = "Tiktok"
	ChannelSourceZalo     ChannelSource = "Zalo"
)

func (s ChannelSource) Valid() bool {
	switch s {
	case ChannelSourceFacebook, ChannelSourceTiktok, ChannelSourceZalo:
		return true
	}
	return false
}

// Channel is a page or account synchronized from a social platform. (Source, PageID)
// identifies a channel.
type Channel struct {
	ID          uuid.UUID     `db:"id" json:"id"`
	PageID      string        `db:"page_id" json:"page_id"`
	PageName    string        `db:"page_name" json:"page_name"`
	Token       string        `db:"token" json:"-"`
	IsEnabled   bool          `db:"is_enabled" json:"is_enabled"`
	ExpiredDate *time.Time    `db:"expired_date" json:"expired_date,omitempty"`
	Source      ChannelSource `db:"source" json:"source"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// TableName returns the database table name
func (Channel) TableName() string {
	return "omni_channels"
}

// ChannelUpdate is a partial update; nil fields are left untouched.
type ChannelUpdate struct {
	PageName  *string
	Token     *string
	IsEnabled *bool
}

func (u ChannelUpdate) Empty() bool {
	return u.PageName == nil && u.Token == nil && u.IsEnabled == nil
}

// ChannelQuery filters channels. Zero values are ignored; Limit 0 means no limit.
type ChannelQuery struct {
	Source    ChannelSource
	PageID    string
	IsEnabled *bool
	Limit     int
	Offset    int
}
