package chat

import "time"

const (
	ReplySourceNone  = "none"
	ReplySourceAdmin = "admin"
	ReplySourceBot   = "bot"
)

// FallbackReply is used when the reply generator is unavailable or fails.
const FallbackReply = "Thanks for sharing! We're here for you."

// AIResult is the classifier annotation attached to a message on ingestion.
type AIResult struct {
	Emotion   string `gorm:"type:varchar(32);not null" json:"emotion"`
	Sentiment string `gorm:"type:varchar(16);not null;index" json:"sentiment"`
}

// Message is the authoritative record of one user submission and its reply
// state. Rows are append-only; after creation the only mutable columns are
// reply, reply_source and the two delivery flags.
type Message struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    string    `gorm:"type:varchar(64);index;not null" json:"user_id"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	CSAT      *int      `json:"csat"`
	NPS       *int      `json:"nps"`
	CES       *int      `json:"ces"`
	AI        AIResult  `gorm:"embedded;embeddedPrefix:ai_" json:"ai"`
	CreatedAt time.Time `json:"created_at"`

	Reply       string `gorm:"type:text;not null" json:"reply"`
	ReplySource string `gorm:"type:varchar(8);not null" json:"reply_source"`

	DeliveredToUser  bool `gorm:"not null;default:false" json:"-"`
	DeliveredToAdmin bool `gorm:"not null;default:false" json:"-"`
}

func (Message) TableName() string { return "support_messages" }

// ReplyArchive is the audit row written by the archive worker for every
// winning reply it consumes off the queue.
type ReplyArchive struct {
	ID         string    `gorm:"primaryKey;size:26"` // ULID length
	MessageID  uint64    `gorm:"index;not null"`
	UserID     string    `gorm:"type:varchar(64);index;not null"`
	Source     string    `gorm:"type:varchar(8);not null"`
	Reply      string    `gorm:"type:text;not null"`
	ArchivedAt time.Time `gorm:"not null"`
}

func (ReplyArchive) TableName() string { return "reply_archive" }

// MetricsSnapshot is derived from the full message set on demand and never
// stored.
type MetricsSnapshot struct {
	CSATAvg         float64          `json:"csat_avg"`
	NPSScore        float64          `json:"nps_score"`
	CESAvg          float64          `json:"ces_avg"`
	SentimentCounts map[string]int64 `json:"sentiment_counts"`
}
