package notify

import "time"

// Event kinds. Subscribers treat every kind the same way: something on
// the topic changed, re-fetch the authoritative state. The kind exists
// for logging and badge refreshes, never for incremental updates.
const (
	KindMessageCreated      = "message.created"
	KindMessageUpdated      = "message.updated"
	KindConversationUpdated = "conversation.updated"
	KindThreadRead          = "thread.read"
)

type Event struct {
	Topic string    `json:"topic"`
	Kind  string    `json:"kind"`
	At    time.Time `json:"at"`
}

// ConversationsTopic carries changes to a distributor's conversation
// list.
func ConversationsTopic(distributorID string) string {
	return "conversations:" + distributorID
}

// ThreadTopic carries changes to one conversation's message thread.
func ThreadTopic(conversationID string) string {
	return "thread:" + conversationID
}
