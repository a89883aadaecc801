package reminder

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"joona/internal/nlu"
)

// Reminder is a stored task or alarm. Task and Time together identify it.
type Reminder struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Intent     nlu.Intent         `json:"intent" bson:"intent"`
	Transcript string             `json:"transcript" bson:"transcript"`
	Task       string             `json:"task" bson:"task"`
	Time       string             `json:"time" bson:"time"`
	Response   string             `json:"response" bson:"response"`
	Category   nlu.Category       `json:"category" bson:"category"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// NormalizeTime strips spaces and lowercases, so "7:30 PM" becomes "7:30pm".
func NormalizeTime(t *string) string {
	if t == nil {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(*t, " ", ""))
}

// FromResult builds the record stored for a task result. response is the
// final text spoken back, which may differ from res.Response.
func FromResult(res nlu.Result, response string, now time.Time) Reminder {
	return Reminder{
		Intent:     res.Intent,
		Transcript: res.Transcript,
		Task:       res.Task,
		Time:       NormalizeTime(res.Time),
		Response:   response,
		Category:   res.Category(),
		CreatedAt:  now,
	}
}
