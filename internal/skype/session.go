package skype

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// State of the chat session.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	default:
		return "unauthenticated"
	}
}

// groupSuffix marks group-chat identifiers. Anything else is treated as an
// individual user handle.
const groupSuffix = "@thread.skype"

const (
	loginBackoffMin  = 2 * time.Second
	loginBackoffMax  = time.Minute
	inviteCheckEvery = time.Minute
)

// ConversationID maps a configured recipient to a Skype conversation id.
// Group chats keep their "19:...@thread.skype" form; user handles get the
// "8:" prefix of a one-to-one conversation.
func ConversationID(recipient string) string {
	if strings.HasSuffix(recipient, groupSuffix) {
		if strings.HasPrefix(recipient, "19:") {
			return recipient
		}
		return "19:" + recipient
	}
	if strings.HasPrefix(recipient, "8:") {
		return recipient
	}
	return "8:" + recipient
}

// Session is the single long-lived chat connection of the process. It owns
// the authentication state machine and the inbound event stream. Sends may
// come concurrently from HTTP handlers and the dispatch loop; all shared
// state is mutex-guarded.
type Session struct {
	client *Client
	user   string
	creds  CredentialProvider
	log    *logrus.Logger

	// OnStateChange, when set before Start, is called with the new online
	// status on every transition in or out of StateAuthenticated.
	OnStateChange func(authenticated bool)

	mu    sync.Mutex
	state State

	events chan Event
}

// NewSession creates a session for one chat account.
func NewSession(client *Client, user string, creds CredentialProvider, log *logrus.Logger) *Session {
	return &Session{
		client: client,
		user:   user,
		creds:  creds,
		log:    log,
		state:  StateUnauthenticated,
		events: make(chan Event, 16),
	}
}

// Start launches the login and event loops. They run until ctx is canceled;
// the session has no other terminal state.
func (s *Session) Start(ctx context.Context) {
	go s.run(ctx)
}

// Events returns the inbound event stream. It is consumed by exactly one
// dispatch loop for the process lifetime.
func (s *Session) Events() <-chan Event {
	return s.events
}

// Authenticated reports whether the session currently holds a live login.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAuthenticated
}

// SendTo delivers text to a recipient, routing group identifiers to their
// group conversation and anything else to a one-to-one chat. It returns
// ErrNotAuthenticated while the session is offline; the error is per-call,
// never fatal to the process.
func (s *Session) SendTo(ctx context.Context, recipient, text string) error {
	if !s.Authenticated() {
		return ErrNotAuthenticated
	}

	correlationID := uuid.NewString()
	conversation := ConversationID(recipient)

	err := s.client.SendMessage(ctx, conversation, text, correlationID)
	if err != nil {
		if errors.Is(err, ErrNotAuthenticated) {
			// Token went stale mid-session; drop to offline so the login
			// loop reconnects and health reports honestly.
			s.setState(StateUnauthenticated)
		}
		s.log.WithFields(logrus.Fields{
			"recipient":      recipient,
			"conversation":   conversation,
			"correlation_id": correlationID,
		}).WithError(err).Error("chat send failed")
		return err
	}

	s.log.WithFields(logrus.Fields{
		"recipient":      recipient,
		"conversation":   conversation,
		"correlation_id": correlationID,
	}).Info("chat message sent")
	return nil
}

// AcceptContact accepts a pending contact request from the given user MRI.
func (s *Session) AcceptContact(ctx context.Context, mri string) error {
	return s.client.AcceptInvite(ctx, s.user, mri)
}

func (s *Session) run(ctx context.Context) {
	backoff := loginBackoffMin
	for {
		if ctx.Err() != nil {
			return
		}

		s.setState(StateAuthenticating)
		if err := s.login(ctx); err != nil {
			s.setState(StateUnauthenticated)
			s.log.WithError(err).Errorf("chat login failed, retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return
			}
			backoff = min(backoff*2, loginBackoffMax)
			continue
		}

		backoff = loginBackoffMin
		s.setState(StateAuthenticated)
		s.log.WithField("user", s.user).Info("chat session authenticated")

		s.pollLoop(ctx)
		s.setState(StateUnauthenticated)
	}
}

func (s *Session) login(ctx context.Context) error {
	secret, err := s.creds.Secret(ctx)
	if err != nil {
		return err
	}
	if err := s.client.Login(ctx, s.user, secret); err != nil {
		return err
	}
	if err := s.client.RegisterEndpoint(ctx); err != nil {
		return err
	}
	return s.client.Subscribe(ctx)
}

// pollLoop long-polls for events until the context ends or the backend
// rejects the session, at which point run re-authenticates.
func (s *Session) pollLoop(ctx context.Context) {
	lastInviteCheck := time.Time{}
	for {
		if ctx.Err() != nil {
			return
		}

		raw, err := s.client.Poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.log.WithError(err).Warn("event poll failed, re-authenticating")
			return
		}

		for i := range raw {
			ev, ok := s.toEvent(&raw[i])
			if !ok {
				continue
			}
			select {
			case s.events <- ev:
			case <-ctx.Done():
				return
			}
		}

		if time.Since(lastInviteCheck) >= inviteCheckEvery {
			lastInviteCheck = time.Now()
			s.checkInvites(ctx)
		}
	}
}

func (s *Session) checkInvites(ctx context.Context) {
	mris, err := s.client.Invites(ctx, s.user)
	if err != nil {
		s.log.WithError(err).Debug("contact invite check failed")
		return
	}
	for _, mri := range mris {
		select {
		case s.events <- ContactRequestEvent{Sender: mri}:
		case <-ctx.Done():
			return
		}
	}
}

// toEvent converts a raw gateway event into the session's event vocabulary.
// Messages sent by the bot account itself are filtered out so the dispatch
// loop never reacts to its own replies.
func (s *Session) toEvent(raw *eventMessage) (Event, bool) {
	if raw.ResourceType != "NewMessage" {
		return nil, false
	}
	if raw.Resource.MessageType != "Text" && raw.Resource.MessageType != "RichText" {
		return nil, false
	}

	sender := strings.TrimPrefix(path.Base(raw.Resource.From), "8:")
	if sender == "" || sender == s.user {
		return nil, false
	}

	return MessageEvent{
		Conversation: path.Base(raw.Resource.ConversationLink),
		Sender:       sender,
		Body:         raw.Resource.Content,
	}, true
}

func (s *Session) setState(next State) {
	s.mu.Lock()
	prev := s.state
	s.state = next
	hook := s.OnStateChange
	s.mu.Unlock()

	if prev != next {
		s.log.Debugf("chat session state: %s -> %s", prev, next)
	}
	if hook != nil && (prev == StateAuthenticated) != (next == StateAuthenticated) {
		hook(next == StateAuthenticated)
	}
}

// sleep waits for d and reports false when the context ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
