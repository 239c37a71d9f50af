package db

import (
	"context"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
)

func openTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite database: %v", err)
	}
	if err := gdb.AutoMigrate(&Reminder{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("failed to access underlying DB: %v", err)
	}
	t.Cleanup(func() {
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("failed to close database: %v", err)
		}
	})
	return gdb
}

func TestReminderRepositoryRoundTrip(t *testing.T) {
	repo := NewReminderRepository(openTestDB(t, "repo_roundtrip"))
	ctx := context.Background()

	due := time.Date(2026, time.July, 10, 8, 30, 0, 0, time.UTC)
	created := alarm.Reminder{
		UserID:    42,
		Title:     "water the plants",
		Message:   "balcony first",
		StartDate: due,
		DueDate:   due,
		Rule: alarm.Rule{
			Pattern:  alarm.PatternWeekly,
			Interval: 2,
			Days:     []time.Weekday{time.Monday, time.Thursday},
		},
		IsActive:     true,
		SoundEnabled: true,
		SoundTone:    "chime",
	}
	if err := repo.Create(ctx, &created); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID == 0 {
		t.Fatal("Create did not assign an id")
	}

	loaded, err := repo.ListActive(ctx, 42)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("ListActive returned %d reminders, want 1", len(loaded))
	}
	got := loaded[0]
	if got.Title != created.Title || got.Message != created.Message {
		t.Errorf("text fields lost: %+v", got)
	}
	if !got.DueDate.Equal(due) || !got.StartDate.Equal(due) {
		t.Errorf("dates lost: due=%v start=%v", got.DueDate, got.StartDate)
	}
	if got.Rule.Pattern != alarm.PatternWeekly || got.Rule.Interval != 2 {
		t.Errorf("rule lost: %+v", got.Rule)
	}
	if len(got.Rule.Days) != 2 || got.Rule.Days[0] != time.Monday || got.Rule.Days[1] != time.Thursday {
		t.Errorf("repeat days lost: %v", got.Rule.Days)
	}
	if got.SoundTone != "chime" {
		t.Errorf("sound tone lost: %q", got.SoundTone)
	}
}

func TestListActiveOrdersAndFilters(t *testing.T) {
	gdb := openTestDB(t, "repo_ordering")
	repo := NewReminderRepository(gdb)
	ctx := context.Background()

	early := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)
	seed := []Reminder{
		{UserID: 1, Title: "late", StartDate: late, DueDate: late, RepeatInterval: 1, IsActive: true},
		{UserID: 1, Title: "early-b", StartDate: early, DueDate: early, RepeatInterval: 1, IsActive: true},
		{UserID: 1, Title: "early-a", StartDate: early, DueDate: early, RepeatInterval: 1, IsActive: true},
		{UserID: 1, Title: "inactive", StartDate: early, DueDate: early, RepeatInterval: 1, IsActive: false},
		{UserID: 2, Title: "other user", StartDate: early, DueDate: early, RepeatInterval: 1, IsActive: true},
	}
	for i := range seed {
		if err := gdb.Create(&seed[i]).Error; err != nil {
			t.Fatalf("failed to seed reminder: %v", err)
		}
	}

	got, err := repo.ListActive(ctx, 1)
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	var titles []string
	for _, r := range got {
		titles = append(titles, r.Title)
	}
	want := []string{"early-b", "early-a", "late"}
	if len(titles) != len(want) {
		t.Fatalf("ListActive returned %v, want %v", titles, want)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Fatalf("ListActive order = %v, want %v", titles, want)
		}
	}

	all, err := repo.ListActive(ctx, 0)
	if err != nil {
		t.Fatalf("ListActive(0) failed: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("ListActive(0) returned %d reminders, want every active owner", len(all))
	}
}

func TestUpdatePersistsClearedSnooze(t *testing.T) {
	gdb := openTestDB(t, "repo_snooze")
	repo := NewReminderRepository(gdb)
	ctx := context.Background()

	due := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	snooze := due.Add(10 * time.Minute)
	r := alarm.Reminder{
		UserID: 1, Title: "meds", StartDate: due, DueDate: due,
		SnoozeUntil: &snooze, IsActive: true,
	}
	if err := repo.Create(ctx, &r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	r.SnoozeUntil = nil
	r.DueDate = due.AddDate(0, 0, 1)
	if err := repo.Update(ctx, &r); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	var row Reminder
	if err := gdb.First(&row, r.ID).Error; err != nil {
		t.Fatalf("failed to reload row: %v", err)
	}
	if row.SnoozeUntil != nil {
		t.Errorf("snooze_until not cleared in the database: %v", row.SnoozeUntil)
	}
	if !row.DueDate.Equal(r.DueDate) {
		t.Errorf("due_date = %v, want %v", row.DueDate, r.DueDate)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	gdb := openTestDB(t, "repo_delete")
	repo := NewReminderRepository(gdb)
	ctx := context.Background()

	due := time.Date(2026, time.July, 1, 9, 0, 0, 0, time.UTC)
	r := alarm.Reminder{UserID: 1, Title: "gone", StartDate: due, DueDate: due, IsActive: true}
	if err := repo.Create(ctx, &r); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := repo.Delete(ctx, r.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int64
	if err := gdb.Model(&Reminder{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected empty table after delete, found %d rows", count)
	}
}

func TestRepeatDaysDecodeRejectsUnknownName(t *testing.T) {
	row := Reminder{
		ID:             3,
		RepeatPattern:  string(alarm.PatternWeekly),
		RepeatInterval: 1,
		RepeatDays:     []byte(`["funday"]`),
	}
	if _, err := row.ToAlarm(); err == nil {
		t.Fatal("expected decode error for unknown weekday name")
	}
}

func TestFromAlarmEncodesDays(t *testing.T) {
	r := alarm.Reminder{
		Rule: alarm.Rule{
			Pattern:  alarm.PatternCustom,
			Interval: 1,
			Days:     []time.Weekday{time.Sunday, time.Saturday},
		},
	}
	row, err := FromAlarm(r)
	if err != nil {
		t.Fatalf("FromAlarm failed: %v", err)
	}
	if string(row.RepeatDays) != `["sunday","saturday"]` {
		t.Fatalf("encoded days = %s", row.RepeatDays)
	}
	back, err := row.ToAlarm()
	if err != nil {
		t.Fatalf("ToAlarm failed: %v", err)
	}
	if len(back.Rule.Days) != 2 || back.Rule.Days[0] != time.Sunday || back.Rule.Days[1] != time.Saturday {
		t.Fatalf("decoded days = %v", back.Rule.Days)
	}
}
