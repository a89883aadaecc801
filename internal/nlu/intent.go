package nlu

type Intent string

const (
	IntentTurnOnDevice       Intent = "turn_on_device"
	IntentTurnOffDevice      Intent = "turn_off_device"
	IntentGetWeather         Intent = "get_weather"
	IntentSetReminderFull    Intent = "set_reminder_full"
	IntentSetReminderPartial Intent = "set_reminder_partial"
	IntentSetAlarm           Intent = "set_alarm"
	IntentPlayMusic          Intent = "play_music"
	IntentJoona              Intent = "joona_intent"
	IntentEmotionSad         Intent = "emotion_sad"
	IntentEmotionHappy       Intent = "emotion_happy"
	IntentGreeting           Intent = "greeting"
	IntentFarewell           Intent = "farewell"
	IntentTellJoke           Intent = "tell_joke"
	IntentUnknown            Intent = "unknown"
)

type Category string

const (
	CategoryQuery       Category = "query"
	CategoryTask        Category = "task"
	CategoryEmotion     Category = "emotion"
	CategoryInteraction Category = "interaction"
)

// Category is the coarse grouping callers branch on.
func (i Intent) Category() Category {
	switch i {
	case IntentTurnOnDevice, IntentTurnOffDevice, IntentGetWeather:
		return CategoryQuery
	case IntentSetReminderFull, IntentSetReminderPartial, IntentSetAlarm:
		return CategoryTask
	case IntentEmotionSad, IntentEmotionHappy:
		return CategoryEmotion
	case IntentJoona, IntentGreeting, IntentFarewell, IntentTellJoke:
		return CategoryInteraction
	default:
		return CategoryQuery
	}
}

// IsReminder reports whether results of this intent belong in the reminder store.
func (i Intent) IsReminder() bool {
	return i.Category() == CategoryTask
}

func (i Intent) IsDevice() bool {
	return i == IntentTurnOnDevice || i == IntentTurnOffDevice
}
