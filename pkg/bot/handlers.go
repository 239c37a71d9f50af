package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

// engineAPI is the slice of the alarm engine the handlers drive. Tests
// substitute a fake.
type engineAPI interface {
	Add(ctx context.Context, r alarm.Reminder) (alarm.Reminder, error)
	Remove(ctx context.Context, id uint) error
	SetActive(ctx context.Context, id uint, active bool) error
	Snooze(ctx context.Context, id uint, d time.Duration) error
	Dismiss(ctx context.Context, id uint) error
	Snapshot(id uint) (alarm.Reminder, bool)
}

type reminderLister interface {
	ListActive(ctx context.Context, userID int64) ([]alarm.Reminder, error)
}

type Handlers struct {
	engine    engineAPI
	store     reminderLister
	presenter *Presenter
	now       func() time.Time
}

func NewHandlers(engine engineAPI, store reminderLister, presenter *Presenter) *Handlers {
	return &Handlers{
		engine:    engine,
		store:     store,
		presenter: presenter,
		now:       time.Now,
	}
}

func (h *Handlers) DefaultHandler(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil {
		logger.Error("received invalid update in DefaultHandler")
		return
	}
	if update.Message.Chat.ID == 0 {
		logger.Error("chat ID is zero in DefaultHandler")
		return
	}

	_, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: update.Message.Chat.ID,
		Text: "Commands:\n" +
			"* /remind <date> <time> <title>: set a reminder, e.g. /remind 2026-07-10 08:30 Water the plants\n" +
			"  Add repeat=daily|weekly|monthly, every=N or days=mon,thu for recurring reminders.\n" +
			"* /list: show your reminders.\n" +
			"* /pause <id> and /resume <id>: stop and restart a reminder.\n" +
			"* /delete <id>: remove a reminder.\n" +
			"When a reminder rings, use the buttons under the message to snooze or dismiss it.",
	})
	if err != nil {
		logger.Error("failed to send message in DefaultHandler", "error", err)
	}
}

func (h *Handlers) HandleRemind(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleRemind")
		return
	}
	chatID := update.Message.Chat.ID

	reminder, err := parseRemindCommand(update.Message.Text, h.now())
	if err != nil {
		sendText(ctx, b, chatID, "I could not read that: "+err.Error()+
			"\nExample: /remind 2026-07-10 08:30 Water the plants repeat=daily")
		return
	}
	reminder.UserID = update.Message.From.ID

	created, err := h.engine.Add(ctx, reminder)
	if err != nil {
		if errors.Is(err, alarm.ErrInvalidRule) {
			sendText(ctx, b, chatID, "That repeat rule is not valid: "+err.Error())
			return
		}
		logger.Error("failed to add reminder", "user_id", reminder.UserID, "error", err)
		sendText(ctx, b, chatID, "Failed to save the reminder, please try again later.")
		return
	}

	text := fmt.Sprintf("Reminder #%d set for %s", created.ID, created.DueDate.Format("2006-01-02 15:04 MST"))
	if created.IsRecurring() {
		text += " (" + humanRule(created.Rule) + ")"
	}
	sendText(ctx, b, chatID, text)
}

func (h *Handlers) HandleList(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleList")
		return
	}
	chatID := update.Message.Chat.ID

	reminders, err := h.store.ListActive(ctx, update.Message.From.ID)
	if err != nil {
		logger.Error("failed to list reminders", "user_id", update.Message.From.ID, "error", err)
		sendText(ctx, b, chatID, "Failed to load your reminders, please try again later.")
		return
	}
	if len(reminders) == 0 {
		sendText(ctx, b, chatID, "You have no active reminders. Use /remind to set one.")
		return
	}

	var sb strings.Builder
	sb.WriteString("Your reminders:\n")
	now := h.now()
	for _, r := range reminders {
		sb.WriteString(formatReminderLine(r, now))
		sb.WriteByte('\n')
	}
	sendText(ctx, b, chatID, sb.String())
}

func (h *Handlers) HandlePause(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleToggle(ctx, b, update, "/pause", false)
}

func (h *Handlers) HandleResume(ctx context.Context, b *bot.Bot, update *models.Update) {
	h.handleToggle(ctx, b, update, "/resume", true)
}

func (h *Handlers) handleToggle(ctx context.Context, b *bot.Bot, update *models.Update, command string, active bool) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in handleToggle", "command", command)
		return
	}
	chatID := update.Message.Chat.ID

	id, reply := h.ownReminderID(update.Message.Text, command, update.Message.From.ID)
	if reply != "" {
		sendText(ctx, b, chatID, reply)
		return
	}

	if err := h.engine.SetActive(ctx, id, active); err != nil {
		logger.Error("failed to toggle reminder", "reminder_id", id, "active", active, "error", err)
		sendText(ctx, b, chatID, "Failed to update the reminder, please try again later.")
		return
	}
	if active {
		sendText(ctx, b, chatID, fmt.Sprintf("Reminder #%d resumed.", id))
	} else {
		sendText(ctx, b, chatID, fmt.Sprintf("Reminder #%d paused.", id))
	}
}

func (h *Handlers) HandleDelete(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.Message == nil || update.Message.From == nil || update.Message.Chat.ID == 0 {
		logger.Error("invalid update in HandleDelete")
		return
	}
	chatID := update.Message.Chat.ID

	id, reply := h.ownReminderID(update.Message.Text, "/delete", update.Message.From.ID)
	if reply != "" {
		sendText(ctx, b, chatID, reply)
		return
	}

	if err := h.engine.Remove(ctx, id); err != nil {
		logger.Error("failed to delete reminder", "reminder_id", id, "error", err)
		sendText(ctx, b, chatID, "Failed to delete the reminder, please try again later.")
		return
	}
	sendText(ctx, b, chatID, fmt.Sprintf("Reminder #%d deleted.", id))
}

// ownReminderID parses "<command> <id>" and checks the reminder belongs to
// the calling user. A non-empty reply means the id is unusable and the reply
// should be sent back.
func (h *Handlers) ownReminderID(text, command string, userID int64) (uint, string) {
	arg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(text), command))
	if arg == "" {
		return 0, fmt.Sprintf("Usage: %s <id>. Find the id with /list.", command)
	}
	arg = strings.TrimPrefix(arg, "#")
	id, err := strconv.ParseUint(arg, 10, 32)
	if err != nil || id == 0 {
		return 0, fmt.Sprintf("%q is not a reminder id. Find the id with /list.", arg)
	}

	r, ok := h.engine.Snapshot(uint(id))
	if !ok || r.UserID != userID {
		return 0, fmt.Sprintf("Reminder #%d was not found.", id)
	}
	return uint(id), ""
}

func sendText(ctx context.Context, b *bot.Bot, chatID int64, text string) {
	if _, err := b.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}); err != nil {
		logger.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

var weekdayFlags = map[string]time.Weekday{
	"sun": time.Sunday,
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
}

// parseRemindCommand turns "/remind <date> <time> <title> [flags]" into a
// reminder. Flags are trailing key=value tokens: repeat=daily|weekly|monthly,
// every=N, days=mon,thu. A bare time without a date means the next such time
// of day.
func parseRemindCommand(text string, now time.Time) (alarm.Reminder, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/remind") {
		fields = fields[1:]
	}
	if len(fields) == 0 {
		return alarm.Reminder{}, errors.New("missing date and title")
	}

	rule := alarm.Rule{Pattern: alarm.PatternNone, Interval: 1}
	var rest []string
	for _, field := range fields {
		key, value, isFlag := strings.Cut(field, "=")
		if !isFlag {
			rest = append(rest, field)
			continue
		}
		switch strings.ToLower(key) {
		case "repeat":
			rule.Pattern = alarm.Pattern(strings.ToLower(value))
		case "every":
			interval, err := strconv.Atoi(value)
			if err != nil || interval < 1 {
				return alarm.Reminder{}, fmt.Errorf("every=%s is not a positive number", value)
			}
			rule.Interval = interval
		case "days":
			for _, name := range strings.Split(strings.ToLower(value), ",") {
				day, ok := weekdayFlags[strings.TrimSpace(name)]
				if !ok {
					return alarm.Reminder{}, fmt.Errorf("unknown day %q, use mon..sun", name)
				}
				rule.Days = append(rule.Days, day)
			}
			if rule.Pattern == alarm.PatternNone {
				rule.Pattern = alarm.PatternWeekly
			}
		default:
			rest = append(rest, field)
		}
	}
	if len(rule.Days) > 0 && rule.Pattern == alarm.PatternDaily {
		return alarm.Reminder{}, errors.New("days= only works with repeat=weekly or repeat=custom")
	}

	due, rest, err := parseWhen(rest, now)
	if err != nil {
		return alarm.Reminder{}, err
	}
	title := strings.TrimSpace(strings.Join(rest, " "))
	if title == "" {
		return alarm.Reminder{}, errors.New("missing reminder title")
	}

	r := alarm.Reminder{
		Title:            title,
		StartDate:        due,
		DueDate:          due,
		Rule:             rule,
		IsActive:         true,
		SoundEnabled:     true,
		VibrationEnabled: true,
	}
	if err := r.Rule.Validate(); err != nil {
		return alarm.Reminder{}, err
	}
	return r, nil
}

// parseWhen consumes the leading date and time tokens and returns the rest.
func parseWhen(fields []string, now time.Time) (time.Time, []string, error) {
	if len(fields) == 0 {
		return time.Time{}, nil, errors.New("missing date or time")
	}

	if len(fields) >= 2 {
		if due, err := time.ParseInLocation("2006-01-02 15:04", fields[0]+" "+fields[1], now.Location()); err == nil {
			return due, fields[2:], nil
		}
	}
	if clock, err := time.ParseInLocation("15:04", fields[0], now.Location()); err == nil {
		due := time.Date(now.Year(), now.Month(), now.Day(),
			clock.Hour(), clock.Minute(), 0, 0, now.Location())
		if !due.After(now) {
			due = due.AddDate(0, 0, 1)
		}
		return due, fields[1:], nil
	}
	return time.Time{}, nil, fmt.Errorf("%q is not a date or time, use YYYY-MM-DD HH:MM or HH:MM", fields[0])
}

func formatReminderLine(r alarm.Reminder, now time.Time) string {
	line := fmt.Sprintf("#%d %s, next %s", r.ID, r.Title, r.EffectiveTrigger(now).Format("2006-01-02 15:04"))
	if r.IsRecurring() {
		line += " (" + humanRule(r.Rule) + ")"
	}
	if r.SnoozeUntil != nil && r.SnoozeUntil.After(now) {
		line += " [snoozed]"
	}
	return line
}

func humanRule(rule alarm.Rule) string {
	unit := ""
	switch rule.Pattern {
	case alarm.PatternDaily:
		unit = "day"
	case alarm.PatternWeekly, alarm.PatternCustom:
		unit = "week"
	case alarm.PatternMonthly:
		unit = "month"
	default:
		return "once"
	}

	label := "every " + unit
	if rule.Interval > 1 {
		label = fmt.Sprintf("every %d %ss", rule.Interval, unit)
	}
	if len(rule.Days) > 0 {
		var names []string
		for _, day := range rule.Days {
			names = append(names, day.String()[:3])
		}
		label += " on " + strings.Join(names, ", ")
	}
	return label
}
