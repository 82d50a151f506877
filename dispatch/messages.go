package dispatch

// User-facing replies. They are part of the conversational contract and are
// returned verbatim to the inbound adapter.
const (
	MessageFatal       = "Sorry, something went wrong while generating the answer."
	MessageUnavailable = "The assistant is temporarily unavailable (provider error). Please try again shortly."
	MessageNoResponse  = "I couldn't produce a response."

	escalationPrefix    = "Agent escalated: "
	escalationNoMessage = "No specific message."
)

// EscalationMessage formats the reply for an escalated, empty outcome.
func EscalationMessage(msg string) string {
	if msg == "" {
		msg = escalationNoMessage
	}
	return escalationPrefix + msg
}
