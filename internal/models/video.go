package models

// Video references an object already uploaded to cloud storage. Duration is
// filled in lazily by the player once metadata loads.
type Video struct {
	BaseModel

	Filename     string `gorm:"not null" json:"filename"`
	StorageURL   string `gorm:"not null" json:"storage_url"`
	DurationSecs *int   `json:"duration_secs,omitempty"`
	Title        string `json:"title,omitempty"`
	UserID       string `gorm:"type:uuid;not null;index" json:"user_id"`

	User  *User  `gorm:"foreignKey:UserID" json:"-"`
	Views []View `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE" json:"-"`
}
