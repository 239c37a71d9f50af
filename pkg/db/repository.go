package db

import (
	"context"
	"fmt"
	"strconv"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
	"github.com/martvell/tg-alarm-reminder/pkg/config"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

// Export DB variable
var DB *gorm.DB

func InitDB(cfg config.DatabaseConfig) error {
	gormLogger, gormErr := newGormLogger(config.AppConfig.Logging.GormLevel)
	if gormErr != nil {
		logger.Error("invalid gorm log level", "value", config.AppConfig.Logging.GormLevel, "error", gormErr)
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "sqlite":
		path := cfg.Path
		if path == "" {
			path = "reminders.db"
		}
		dialector = sqlite.Open(path)
	case "postgres", "":
		dsn := "host=" + cfg.Host +
			" user=" + cfg.User +
			" password=" + cfg.Password +
			" dbname=" + cfg.DBName +
			" port=" + strconv.Itoa(cfg.Port) +
			" sslmode=" + cfg.SSLMode
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	var err error
	DB, err = gorm.Open(dialector, &gorm.Config{Logger: gormLogger})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return err
	}
	if err := DB.AutoMigrate(&Reminder{}); err != nil {
		logger.Error("failed to auto-migrate database", "error", err)
		return err
	}
	return nil
}

// ReminderRepository implements the engine's store port on gorm.
type ReminderRepository struct {
	db *gorm.DB
}

func NewReminderRepository(gdb *gorm.DB) *ReminderRepository {
	return &ReminderRepository{db: gdb}
}

// ListActive returns active reminders ordered by due date, earliest first and
// lower ids first within the same instant. userID 0 selects every owner.
func (r *ReminderRepository) ListActive(ctx context.Context, userID int64) ([]alarm.Reminder, error) {
	query := r.db.WithContext(ctx).Where("is_active = ?", true)
	if userID != 0 {
		query = query.Where("user_id = ?", userID)
	}
	var rows []Reminder
	if err := query.Order("due_date ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]alarm.Reminder, 0, len(rows))
	for _, row := range rows {
		reminder, err := row.ToAlarm()
		if err != nil {
			logger.Error("skipping undecodable reminder row", "reminder_id", row.ID, "error", err)
			continue
		}
		out = append(out, reminder)
	}
	return out, nil
}

func (r *ReminderRepository) Create(ctx context.Context, reminder *alarm.Reminder) error {
	row, err := FromAlarm(*reminder)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return err
	}
	reminder.ID = row.ID
	reminder.CreatedAt = row.CreatedAt
	reminder.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *alarm.Reminder) error {
	row, err := FromAlarm(*reminder)
	if err != nil {
		return err
	}
	// Save writes every column, so cleared fields like snooze_until reach the
	// database instead of being skipped as zero values.
	if err := r.db.WithContext(ctx).Save(&row).Error; err != nil {
		return err
	}
	reminder.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *ReminderRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&Reminder{}, id).Error
}
