package models

// Channel enumerates the supported notification transports.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelTeams Channel = "teams"
	ChannelSlack Channel = "slack"
)

// Valid reports whether the channel is one of the closed set.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelTeams, ChannelSlack:
		return true
	}
	return false
}

// NotificationSetting configures one outbound channel. Target holds a webhook
// URL for chat channels and a recipient address for email.
type NotificationSetting struct {
	BaseModel

	Channel   Channel `gorm:"uniqueIndex;not null" json:"channel"`
	Target    string  `gorm:"not null" json:"target"`
	Threshold int     `gorm:"not null;default:50" json:"notify_threshold"`
	// No default tag: gorm drops zero-value fields carrying one on insert,
	// so Enabled=false would be stored as true.
	Enabled bool `gorm:"not null" json:"enabled"`
}
