package db

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
)

// Reminder is the persisted row behind alarm.Reminder. RepeatDays holds the
// weekday selection as a JSON array of lowercase names so the column survives
// both postgres and sqlite without a join table.
type Reminder struct {
	ID               uint      `gorm:"primaryKey"`
	UserID           int64     `gorm:"index;index:idx_user_due"`
	Title            string    `gorm:"not null"`
	Message          string    `gorm:"not null;default:''"`
	StartDate        time.Time `gorm:"not null"`
	DueDate          time.Time `gorm:"index:idx_user_due;not null"`
	SnoozeUntil      *time.Time
	RepeatPattern    string         `gorm:"not null;default:''"`
	RepeatInterval   int            `gorm:"not null;default:1"`
	RepeatDays       datatypes.JSON `gorm:"default:null"`
	IsActive         bool           `gorm:"index;not null;default:true"`
	SoundEnabled     bool           `gorm:"not null;default:true"`
	SoundTone        string         `gorm:"not null;default:''"`
	VibrationEnabled bool           `gorm:"not null;default:true"`
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func weekdayName(d time.Weekday) string {
	switch d {
	case time.Sunday:
		return "sunday"
	case time.Monday:
		return "monday"
	case time.Tuesday:
		return "tuesday"
	case time.Wednesday:
		return "wednesday"
	case time.Thursday:
		return "thursday"
	case time.Friday:
		return "friday"
	default:
		return "saturday"
	}
}

// ToAlarm maps the row onto the engine's reminder type.
func (r Reminder) ToAlarm() (alarm.Reminder, error) {
	out := alarm.Reminder{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Message:          r.Message,
		StartDate:        r.StartDate,
		DueDate:          r.DueDate,
		SnoozeUntil:      r.SnoozeUntil,
		IsActive:         r.IsActive,
		SoundEnabled:     r.SoundEnabled,
		SoundTone:        r.SoundTone,
		VibrationEnabled: r.VibrationEnabled,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	out.Rule = alarm.Rule{
		Pattern:  alarm.Pattern(r.RepeatPattern),
		Interval: r.RepeatInterval,
	}
	if len(r.RepeatDays) > 0 {
		var names []string
		if err := json.Unmarshal(r.RepeatDays, &names); err != nil {
			return alarm.Reminder{}, fmt.Errorf("decode repeat days for reminder %d: %w", r.ID, err)
		}
		for _, name := range names {
			day, ok := weekdayNames[name]
			if !ok {
				return alarm.Reminder{}, fmt.Errorf("unknown repeat day %q for reminder %d", name, r.ID)
			}
			out.Rule.Days = append(out.Rule.Days, day)
		}
	}
	return out, nil
}

// FromAlarm maps an engine reminder onto a row ready for gorm.
func FromAlarm(r alarm.Reminder) (Reminder, error) {
	row := Reminder{
		ID:               r.ID,
		UserID:           r.UserID,
		Title:            r.Title,
		Message:          r.Message,
		StartDate:        r.StartDate,
		DueDate:          r.DueDate,
		SnoozeUntil:      r.SnoozeUntil,
		RepeatPattern:    string(r.Rule.Pattern),
		RepeatInterval:   r.Rule.Interval,
		IsActive:         r.IsActive,
		SoundEnabled:     r.SoundEnabled,
		SoundTone:        r.SoundTone,
		VibrationEnabled: r.VibrationEnabled,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if row.RepeatInterval < 1 {
		row.RepeatInterval = 1
	}
	if len(r.Rule.Days) > 0 {
		names := make([]string, 0, len(r.Rule.Days))
		for _, day := range r.Rule.Days {
			names = append(names, weekdayName(day))
		}
		encoded, err := json.Marshal(names)
		if err != nil {
			return Reminder{}, fmt.Errorf("encode repeat days for reminder %d: %w", r.ID, err)
		}
		row.RepeatDays = datatypes.JSON(encoded)
	}
	return row, nil
}
