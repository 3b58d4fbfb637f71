package bot

import (
	"context"
	"strings"

	"skype-alertbot/internal/metrics"
	"skype-alertbot/internal/skype"

	"github.com/sirupsen/logrus"
)

// ChatSession is the slice of the chat session the dispatch loop needs.
type ChatSession interface {
	Events() <-chan skype.Event
	SendTo(ctx context.Context, recipient, text string) error
	AcceptContact(ctx context.Context, mri string) error
}

// CommandRunner executes an alert-tool command on behalf of a chat sender.
type CommandRunner interface {
	Run(ctx context.Context, sender string, args []string) (string, error)
}

// Bot is the single consumer of the inbound chat event stream. It accepts
// contact requests, counts messages and relays alert/silence commands to the
// alert tool, replying with whatever the tool printed.
type Bot struct {
	session ChatSession
	invoker CommandRunner
	metrics *metrics.Metrics
	log     *logrus.Logger
}

// New creates the dispatch loop around a session and an alert-tool invoker.
func New(session ChatSession, invoker CommandRunner, m *metrics.Metrics, log *logrus.Logger) *Bot {
	return &Bot{
		session: session,
		invoker: invoker,
		metrics: m,
		log:     log,
	}
}

// Run consumes events one at a time until the context ends or the stream
// closes. Sends are synchronous, so a slow delivery blocks the loop; that
// matches the one-consumer contract of the session.
func (b *Bot) Run(ctx context.Context) {
	b.log.Info("chat dispatch loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-b.session.Events():
			if !ok {
				return
			}
			b.handle(ctx, ev)
		}
	}
}

func (b *Bot) handle(ctx context.Context, ev skype.Event) {
	switch ev := ev.(type) {
	case skype.ContactRequestEvent:
		if err := b.session.AcceptContact(ctx, ev.Sender); err != nil {
			b.log.WithField("sender", ev.Sender).WithError(err).Error("failed to accept contact request")
			return
		}
		b.log.WithField("sender", ev.Sender).Info("contact request accepted")

	case skype.MessageEvent:
		b.metrics.ChatMessagesReceived.Inc()
		b.handleMessage(ctx, ev)
	}
}

func (b *Bot) handleMessage(ctx context.Context, ev skype.MessageEvent) {
	args, ok := ParseCommand(ev.Body)
	if !ok {
		b.log.WithFields(logrus.Fields{
			"sender":       ev.Sender,
			"conversation": ev.Conversation,
		}).Debug("message is not a command, ignoring")
		return
	}

	reply, err := b.invoker.Run(ctx, ev.Sender, args)
	if err != nil {
		// Tool failures and denials are relayed as text, never fatal.
		reply = err.Error()
	}
	if strings.TrimSpace(reply) == "" {
		reply = "(no output)"
	}

	if err := b.session.SendTo(ctx, ev.Conversation, reply); err != nil {
		b.log.WithField("conversation", ev.Conversation).WithError(err).Error("failed to send command reply")
	}
}

// ParseCommand maps a chat message onto alert-tool arguments. Only messages
// whose first word is "alert" or "silence" (any case) are commands; both map
// to the tool's query subcommand and any remaining words are passed through
// as matchers, to be validated by the invoker.
func ParseCommand(body string) ([]string, bool) {
	fields := strings.Fields(body)
	if len(fields) == 0 {
		return nil, false
	}
	switch strings.ToLower(fields[0]) {
	case "alert":
		return append([]string{"alert", "query"}, fields[1:]...), true
	case "silence":
		return append([]string{"silence", "query"}, fields[1:]...), true
	default:
		return nil, false
	}
}
