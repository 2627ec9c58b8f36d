package models

const (
	// MetaPicture holds the avatar URL of a Google linked account.
	MetaPicture = "picture"
	// MetaGoogleLinked is "1" once the account signed in through Google. It is never reset.
	MetaGoogleLinked = "is_google_linked"
)

// UserMeta is a key value attribute of a user.
type UserMeta struct {
	UserID uint64 `gorm:"primaryKey;column:user_id"`
	Key    string `gorm:"primaryKey;column:meta_key;size:100"`
	Value  string `gorm:"size:2048"`
	// User is the owning account. Meta rows are removed with it.
	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName specifies the database table name for the UserMeta model.
func (UserMeta) TableName() string {
	return "user_meta"
}

// Meta is the loaded key value view of a user's UserMeta rows.
type Meta map[string]string

// GoogleLinked reports whether the account has ever signed in through Google.
func (m Meta) GoogleLinked() bool {
	return m[MetaGoogleLinked] == "1"
}
