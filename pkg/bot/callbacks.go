package bot

import (
	"context"
	"errors"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/martvell/tg-alarm-reminder/pkg/alarm"
	"github.com/martvell/tg-alarm-reminder/pkg/bot/alarmui"
	"github.com/martvell/tg-alarm-reminder/pkg/logger"
)

// HandleAlarmCallback answers the snooze and dismiss buttons on a ringing
// alarm message.
func (h *Handlers) HandleAlarmCallback(ctx context.Context, b *bot.Bot, update *models.Update) {
	if update == nil || update.CallbackQuery == nil {
		logger.Error("invalid update in HandleAlarmCallback")
		return
	}

	callbackID := update.CallbackQuery.ID
	answered := false
	answerCallback := func(text string) {
		if answered || callbackID == "" {
			return
		}
		if _, err := b.AnswerCallbackQuery(ctx, &bot.AnswerCallbackQueryParams{
			CallbackQueryID: callbackID,
			Text:            text,
		}); err != nil {
			logger.Error("failed to answer callback query", "error", err)
		}
		answered = true
	}

	action, err := alarmui.ParseCallbackData(update.CallbackQuery.Data)
	if err != nil {
		logger.Error("failed to parse alarm callback", "data", update.CallbackQuery.Data, "error", err)
		answerCallback("Unknown command")
		return
	}

	answerCallback(h.applyAlarmAction(ctx, update.CallbackQuery.From.ID, action))
}

// applyAlarmAction routes a decoded button press to the engine and returns
// the toast text shown to the user.
func (h *Handlers) applyAlarmAction(ctx context.Context, userID int64, action alarmui.Action) string {
	r, ok := h.engine.Snapshot(action.ReminderID)
	if !ok {
		return "This reminder no longer exists"
	}
	if r.UserID != userID {
		logger.Error("alarm callback from wrong user", "reminder_id", action.ReminderID, "user_id", userID)
		return "This reminder no longer exists"
	}

	switch action.Kind {
	case alarmui.KindSnooze:
		err := h.engine.Snooze(ctx, action.ReminderID, time.Duration(action.Minutes)*time.Minute)
		switch {
		case errors.Is(err, alarm.ErrNotFiring):
			return "This alarm is not ringing"
		case err != nil:
			logger.Error("failed to snooze reminder", "reminder_id", action.ReminderID, "error", err)
			return "Failed to snooze, please try again"
		}
		return "Snoozed"
	case alarmui.KindDismiss:
		err := h.engine.Dismiss(ctx, action.ReminderID)
		switch {
		case errors.Is(err, alarm.ErrNotFiring):
			return "This alarm is not ringing"
		case err != nil:
			logger.Error("failed to dismiss reminder", "reminder_id", action.ReminderID, "error", err)
			return "Failed to dismiss, please try again"
		}
		if err := h.presenter.Clear(ctx, action.ReminderID); err != nil {
			logger.Error("failed to remove dismissed alarm message", "reminder_id", action.ReminderID, "error", err)
		}
		return "Dismissed"
	default:
		return "Unknown command"
	}
}
