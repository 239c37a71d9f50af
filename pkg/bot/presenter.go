package bot

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
	"github.com/martvell/tg-alarm-reminder/pkg/bot/alarmui"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

// telegramAPI is the slice of the bot client the presenter needs. *bot.Bot
// satisfies it; tests substitute a recording fake.
type telegramAPI interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	DeleteMessage(ctx context.Context, params *bot.DeleteMessageParams) (bool, error)
}

type presentedMessage struct {
	chatID    int64
	messageID int
}

// Presenter renders firing alarms as Telegram messages with snooze and
// dismiss buttons. It is constructed before the bot client exists, so the
// client is attached later with Bind; until then every Present reports the
// surface as unavailable and the engine keeps retrying.
type Presenter struct {
	mu            sync.Mutex
	api           telegramAPI
	active        map[uint]presentedMessage
	snoozeMinutes []int
}

func NewPresenter(snoozeMinutes []int) *Presenter {
	if len(snoozeMinutes) == 0 {
		snoozeMinutes = []int{10, 60}
	}
	return &Presenter{
		active:        make(map[uint]presentedMessage),
		snoozeMinutes: snoozeMinutes,
	}
}

func (p *Presenter) Bind(api telegramAPI) {
	p.mu.Lock()
	p.api = api
	p.mu.Unlock()
}

// Present sends the alarm message. A leftover message for the same reminder
// is deleted first so the user never sees two live alarms for one reminder.
func (p *Presenter) Present(ctx context.Context, intent alarm.Intent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.api == nil {
		return fmt.Errorf("%w: bot client not attached", alarm.ErrPresentationUnavailable)
	}

	r := intent.Reminder
	if prev, ok := p.active[r.ID]; ok {
		if _, err := p.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
			ChatID:    prev.chatID,
			MessageID: prev.messageID,
		}); err != nil {
			logger.Error("failed to delete stale alarm message", "reminder_id", r.ID, "error", err)
		}
		delete(p.active, r.ID)
	}

	keyboard, err := p.buildKeyboard(r.ID)
	if err != nil {
		return fmt.Errorf("%w: %w", alarm.ErrPresentationUnavailable, err)
	}

	msg, err := p.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:              r.UserID,
		Text:                alarmText(r),
		ReplyMarkup:         keyboard,
		DisableNotification: intent.SoundTone == "",
	})
	if err != nil {
		return fmt.Errorf("%w: %w", alarm.ErrPresentationUnavailable, err)
	}

	p.active[r.ID] = presentedMessage{chatID: r.UserID, messageID: msg.ID}
	return nil
}

// Clear removes the alarm message for the reminder, if one is up.
func (p *Presenter) Clear(ctx context.Context, reminderID uint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	msg, ok := p.active[reminderID]
	if !ok {
		return nil
	}
	delete(p.active, reminderID)

	if p.api == nil {
		return nil
	}
	if _, err := p.api.DeleteMessage(ctx, &bot.DeleteMessageParams{
		ChatID:    msg.chatID,
		MessageID: msg.messageID,
	}); err != nil {
		return err
	}
	return nil
}

func (p *Presenter) buildKeyboard(reminderID uint) (*models.InlineKeyboardMarkup, error) {
	var snoozeRow []models.InlineKeyboardButton
	for _, minutes := range p.snoozeMinutes {
		data, err := alarmui.BuildSnoozeCallback(reminderID, minutes)
		if err != nil {
			return nil, err
		}
		snoozeRow = append(snoozeRow, models.InlineKeyboardButton{
			Text:         snoozeLabel(minutes),
			CallbackData: data,
		})
	}
	dismissData, err := alarmui.BuildDismissCallback(reminderID)
	if err != nil {
		return nil, err
	}
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{
			snoozeRow,
			{{Text: "Done ✅", CallbackData: dismissData}},
		},
	}, nil
}

func snoozeLabel(minutes int) string {
	if minutes >= 60 && minutes%60 == 0 {
		hours := minutes / 60
		if hours == 1 {
			return "Snooze 1 hour"
		}
		return fmt.Sprintf("Snooze %d hours", hours)
	}
	return fmt.Sprintf("Snooze %d min", minutes)
}

func alarmText(r alarm.Reminder) string {
	text := "⏰ " + r.Title
	if r.Message != "" {
		text += "\n" + r.Message
	}
	if r.IsRecurring() {
		text += "\nRepeats " + humanRule(r.Rule)
	}
	return text
}
