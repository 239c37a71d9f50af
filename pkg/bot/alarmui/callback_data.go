package alarmui

import (
	"errors"
	"strconv"
	"strings"
)

const (
	CallbackPrefix     = "a:"
	MaxCallbackDataLen = 64
)

type Kind string

const (
	KindSnooze  Kind = "snz"
	KindDismiss Kind = "dis"
)

// Action is a decoded alarm button press: which reminder and what to do with
// it. Minutes is only meaningful for snooze; zero asks for the default delay.
type Action struct {
	Kind       Kind
	ReminderID uint
	Minutes    int
}

var (
	errInvalidPrefix       = errors.New("invalid callback prefix")
	errInvalidAction       = errors.New("invalid callback action")
	errInvalidReminderID   = errors.New("invalid callback reminder id")
	errInvalidMinutes      = errors.New("invalid callback minutes")
	errCallbackDataTooLong = errors.New("callback data too long")
)

func BuildSnoozeCallback(reminderID uint, minutes int) (string, error) {
	if reminderID == 0 {
		return "", errInvalidReminderID
	}
	if minutes < 0 {
		return "", errInvalidMinutes
	}
	data := CallbackPrefix + string(KindSnooze) +
		":" + strconv.FormatUint(uint64(reminderID), 10) +
		":" + strconv.Itoa(minutes)
	return validateCallbackData(data)
}

func BuildDismissCallback(reminderID uint) (string, error) {
	if reminderID == 0 {
		return "", errInvalidReminderID
	}
	data := CallbackPrefix + string(KindDismiss) +
		":" + strconv.FormatUint(uint64(reminderID), 10)
	return validateCallbackData(data)
}

func ParseCallbackData(data string) (Action, error) {
	if data == "" {
		return Action{}, errInvalidAction
	}
	if len(data) > MaxCallbackDataLen {
		return Action{}, errCallbackDataTooLong
	}
	if !strings.HasPrefix(data, CallbackPrefix) {
		return Action{}, errInvalidPrefix
	}

	parts := strings.Split(data, ":")
	if len(parts) < 3 || parts[0] != "a" {
		return Action{}, errInvalidPrefix
	}

	id, err := parseReminderID(parts[2])
	if err != nil {
		return Action{}, err
	}

	switch Kind(parts[1]) {
	case KindDismiss:
		if len(parts) != 3 {
			return Action{}, errInvalidAction
		}
		return Action{Kind: KindDismiss, ReminderID: id}, nil
	case KindSnooze:
		if len(parts) != 4 {
			return Action{}, errInvalidAction
		}
		if !isASCIIUnsignedInt(parts[3]) {
			return Action{}, errInvalidMinutes
		}
		minutes, err := strconv.Atoi(parts[3])
		if err != nil {
			return Action{}, errInvalidMinutes
		}
		return Action{Kind: KindSnooze, ReminderID: id, Minutes: minutes}, nil
	default:
		return Action{}, errInvalidAction
	}
}

func validateCallbackData(data string) (string, error) {
	if data == "" {
		return "", errInvalidAction
	}
	if len(data) > MaxCallbackDataLen {
		return "", errCallbackDataTooLong
	}
	return data, nil
}

func parseReminderID(value string) (uint, error) {
	if !isASCIIUnsignedInt(value) {
		return 0, errInvalidReminderID
	}
	id, err := strconv.ParseUint(value, 10, 32)
	if err != nil || id == 0 {
		return 0, errInvalidReminderID
	}
	return uint(id), nil
}

func isASCIIUnsignedInt(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
