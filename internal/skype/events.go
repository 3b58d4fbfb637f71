package skype

// Event is one item of the inbound chat stream. The set of implementations
// is closed; consumers dispatch with a type switch instead of inspecting
// resource payloads at runtime.
type Event interface {
	isEvent()
}

// MessageEvent is a new chat message addressed to the bot.
type MessageEvent struct {
	// Conversation is the id replies should be sent to. For group chats it
	// looks like "19:...@thread.skype", for direct chats "8:<handle>".
	Conversation string
	// Sender is the originating user handle without the "8:" prefix, the
	// same form the amtool allow-list is configured with.
	Sender string
	// Body is the plain message text.
	Body string
}

// ContactRequestEvent is an incoming contact invite.
type ContactRequestEvent struct {
	// Sender is the inviting user handle without the "8:" prefix.
	Sender string
}

func (MessageEvent) isEvent()        {}
func (ContactRequestEvent) isEvent() {}
