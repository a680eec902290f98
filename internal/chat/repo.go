package chat

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// Migrate creates the schema. Call once at startup.
func (r *Repo) Migrate() error {
	return r.db.AutoMigrate(&Message{}, &ReplyArchive{})
}

func (r *Repo) Insert(ctx context.Context, m *Message) error {
	if m.ReplySource == "" {
		m.ReplySource = ReplySourceNone
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *Repo) Get(ctx context.Context, id uint64) (*Message, error) {
	var m Message
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// All returns every message in ascending id order.
func (r *Repo) All(ctx context.Context) ([]Message, error) {
	var msgs []Message
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&msgs).Error; err != nil {
		return nil, err
	}
	return msgs, nil
}

// SetReply is the single serialization point of the admin/bot reply race.
//
// For the bot the write is a compare-and-set: it only lands while the reply
// column is still empty, so the bot can never clobber an admin reply. Losing
// the race is not an error; won reports false.
//
// For the admin the write is an unconditional overwrite of whatever is there
// (including an earlier bot reply). The id must exist; gorm.ErrRecordNotFound
// otherwise.
func (r *Repo) SetReply(ctx context.Context, id uint64, text, source string) (won bool, err error) {
	switch source {
	case ReplySourceBot:
		res := r.db.WithContext(ctx).Model(&Message{}).
			Where("id = ? AND reply = ?", id, "").
			Updates(map[string]any{"reply": text, "reply_source": ReplySourceBot})
		if res.Error != nil {
			return false, res.Error
		}
		return res.RowsAffected == 1, nil

	case ReplySourceAdmin:
		var cnt int64
		if err := r.db.WithContext(ctx).Model(&Message{}).
			Where("id = ?", id).Count(&cnt).Error; err != nil {
			return false, err
		}
		if cnt == 0 {
			return false, gorm.ErrRecordNotFound
		}
		res := r.db.WithContext(ctx).Model(&Message{}).
			Where("id = ?", id).
			Updates(map[string]any{"reply": text, "reply_source": ReplySourceAdmin})
		if res.Error != nil {
			return false, res.Error
		}
		return true, nil

	default:
		return false, fmt.Errorf("invalid reply source %q", source)
	}
}

// ClaimPendingForUser selects, in id order, this user's replied messages not
// yet delivered to them and marks them delivered in the same transaction.
// Each message id is returned at most once across all calls.
func (r *Repo) ClaimPendingForUser(ctx context.Context, userID string) ([]Message, error) {
	var claimed []Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("user_id = ? AND reply <> ? AND delivered_to_user = ?", userID, "", false).
			Order("id ASC").
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		return tx.Model(&Message{}).
			Where("id IN ?", messageIDs(claimed)).
			Update("delivered_to_user", true).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range claimed {
		claimed[i].DeliveredToUser = true
	}
	return claimed, nil
}

// ClaimPendingForAdmin is the admin-class counterpart; the admin observes
// every message, replied or not.
func (r *Repo) ClaimPendingForAdmin(ctx context.Context) ([]Message, error) {
	var claimed []Message
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Where("delivered_to_admin = ?", false).
			Order("id ASC").
			Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}
		return tx.Model(&Message{}).
			Where("id IN ?", messageIDs(claimed)).
			Update("delivered_to_admin", true).Error
	})
	if err != nil {
		return nil, err
	}
	for i := range claimed {
		claimed[i].DeliveredToAdmin = true
	}
	return claimed, nil
}

func messageIDs(msgs []Message) []uint64 {
	ids := make([]uint64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids
}

// InsertReplyArchive records a consumed reply event. Duplicate event ids
// (redelivered queue messages) are ignored.
func (r *Repo) InsertReplyArchive(ctx context.Context, a *ReplyArchive) error {
	err := r.db.WithContext(ctx).Create(a).Error
	if err != nil {
		var existing ReplyArchive
		if getErr := r.db.WithContext(ctx).First(&existing, "id = ?", a.ID).Error; getErr == nil {
			return nil
		}
	}
	return err
}
