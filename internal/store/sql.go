package store

import (
	"context"
	"time"

	"messenger/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLBackend keeps logs in the log_entries table. Expiry lives in
// log_expiries and is enforced on access and by Sweep.
type SQLBackend struct {
	db  *gorm.DB
	now func() time.Time
}

func NewSQLBackend(gdb *gorm.DB) *SQLBackend {
	return &SQLBackend{db: gdb, now: time.Now}
}

// purgeIfExpired drops userID's log when its expiry has passed, so a
// later append starts a fresh log without expiry.
func (s *SQLBackend) purgeIfExpired(tx *gorm.DB, userID string) (bool, error) {
	var exp models.LogExpiry
	err := tx.Where("user_id = ?", userID).Limit(1).Find(&exp).Error
	if err != nil {
		return false, err
	}
	if exp.UserID == "" || exp.ExpireAt > s.now().Unix() {
		return false, nil
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.LogEntry{}).Error; err != nil {
		return false, err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.LogExpiry{}).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (s *SQLBackend) Append(ctx context.Context, userID string, entry []byte, expireAt time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.purgeIfExpired(tx, userID); err != nil {
			return err
		}
		if err := tx.Create(&models.LogEntry{UserID: userID, Payload: entry}).Error; err != nil {
			return err
		}
		if expireAt.IsZero() {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"expire_at", "updated_at"}),
		}).Create(&models.LogExpiry{UserID: userID, ExpireAt: expireAt.Unix()}).Error
	})
}

func (s *SQLBackend) ReadAll(ctx context.Context, userID string) ([][]byte, error) {
	var rows []models.LogEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		purged, err := s.purgeIfExpired(tx, userID)
		if err != nil || purged {
			return err
		}
		return tx.Select("id", "payload").Where("user_id = ?", userID).Order("id asc").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Payload)
	}
	return out, nil
}

// Expiry returns the expiry recorded for userID, if any.
func (s *SQLBackend) Expiry(ctx context.Context, userID string) (time.Time, bool, error) {
	var exp models.LogExpiry
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Limit(1).Find(&exp).Error; err != nil {
		return time.Time{}, false, err
	}
	if exp.UserID == "" {
		return time.Time{}, false, nil
	}
	return time.Unix(exp.ExpireAt, 0).UTC(), true, nil
}

// Sweep deletes every log whose expiry has passed and reports how many
// logs were removed.
func (s *SQLBackend) Sweep(ctx context.Context) (int64, error) {
	now := s.now().Unix()
	var removed int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		expired := tx.Model(&models.LogExpiry{}).Select("user_id").Where("expire_at <= ?", now)
		if err := tx.Where("user_id IN (?)", expired).Delete(&models.LogEntry{}).Error; err != nil {
			return err
		}
		res := tx.Where("expire_at <= ?", now).Delete(&models.LogExpiry{})
		removed = res.RowsAffected
		return res.Error
	})
	return removed, err
}

func (s *SQLBackend) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
