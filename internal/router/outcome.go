package router

// Outcome makes silent-drop paths explicit. End users never see a dropped
// event, but callers and tests can assert on what happened.
type Outcome int

const (
	// OutcomeDelivered means the event was broadcast (or enqueued for
	// persistence and broadcast, for sends).
	OutcomeDelivered Outcome = iota

	// OutcomeDroppedUnknownSession means the event referenced a connection
	// with no registered session and was dropped without any broadcast.
	OutcomeDroppedUnknownSession

	// OutcomeDroppedRecipientNotFound means a private message's target
	// username matched no active session.
	OutcomeDroppedRecipientNotFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeDroppedUnknownSession:
		return "dropped_unknown_session"
	case OutcomeDroppedRecipientNotFound:
		return "dropped_recipient_not_found"
	default:
		return "unknown"
	}
}
