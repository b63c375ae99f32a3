package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gatebot/internal/directory"
)

// InputKind classifies one incoming chat update for the state machine.
type InputKind int

const (
	// KindStart is the explicit entry signal (/start).
	KindStart InputKind = iota
	// KindCancel is the explicit cancel signal (/cancel).
	KindCancel
	// KindContact is a structured phone-number credential.
	KindContact
	// KindText is any free-text message.
	KindText
)

type Input struct {
	ChatID int64
	Kind   InputKind
	Text   string
	// Phone is set for KindContact only.
	Phone string
}

// Keyboard tells the transport which reply keyboard to render. Rendering
// itself is the transport's business.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardContact
	KeyboardMenu
	KeyboardRemove
)

type Reply struct {
	Text     string
	Markdown bool
	Keyboard Keyboard
}

// Replier delivers replies back into the conversation.
type Replier interface {
	Send(ctx context.Context, chatID int64, r Reply) error
}

// Directory is the verification oracle.
type Directory interface {
	Authenticate(ctx context.Context, phone string, chatID int64) (directory.Member, bool)
}

// MenuRouter handles free text for authenticated sessions. It must reply
// with a generic reminder for unrecognized input; it never changes state.
type MenuRouter interface {
	Route(ctx context.Context, sess Session, text string, send func(Reply) error) error
}

// Texts are the machine's own emissions. Menu texts live with the router.
type Texts struct {
	AskPhone      string
	RepromptPhone string
	WelcomeFormat string // one %s verb for the display name
	AccessDenied  string
	Farewell      string
	MenuPrompt    string
}

// DefaultTexts returns the production (Russian) texts.
func DefaultTexts() Texts {
	return Texts{
		AskPhone:      "Здравствуйте! Пожалуйста, подтвердите свой номер телефона:",
		RepromptPhone: "Пожалуйста, поделитесь номером телефона через кнопку.",
		WelcomeFormat: "Добро пожаловать, %s!",
		AccessDenied:  "Ваш номер не найден в базе СНТ. Доступ запрещён.",
		Farewell:      "До свидания!",
		MenuPrompt:    "Выберите раздел:",
	}
}

// Machine drives one conversation through verification and, once
// authenticated, routes commands to the menu. Each conversation is handled
// independently; the machine itself holds no per-chat state outside the
// store.
type Machine struct {
	store   Store
	dir     Directory
	menu    MenuRouter
	replier Replier
	texts   Texts
	log     *slog.Logger
	clock   func() time.Time
}

func NewMachine(store Store, dir Directory, menu MenuRouter, replier Replier, texts Texts, log *slog.Logger) *Machine {
	return &Machine{
		store:   store,
		dir:     dir,
		menu:    menu,
		replier: replier,
		texts:   texts,
		log:     log,
		clock:   time.Now,
	}
}

func (m *Machine) Handle(ctx context.Context, in Input) error {
	sess, found, err := m.store.Get(ctx, in.ChatID)
	if err != nil {
		return fmt.Errorf("session load: %w", err)
	}
	if !found {
		sess = Session{ChatID: in.ChatID, State: StateUnauthenticated, StartedAt: m.clock().UTC()}
	}

	send := func(r Reply) error { return m.replier.Send(ctx, in.ChatID, r) }

	switch in.Kind {
	case KindStart:
		return m.handleStart(ctx, sess, send)
	case KindCancel:
		return m.handleCancel(ctx, sess, send)
	case KindContact:
		return m.handleContact(ctx, sess, in, send)
	case KindText:
		return m.handleText(ctx, sess, in, send)
	default:
		return nil
	}
}

// handleStart opens a fresh session. A start signal inside an active
// conversation is ignored; only Unauthenticated and the terminal Ended
// accept it.
func (m *Machine) handleStart(ctx context.Context, sess Session, send func(Reply) error) error {
	switch sess.State {
	case StateAwaitingPhone, StateAuthenticated:
		return nil
	}

	now := m.clock().UTC()
	fresh := Session{ChatID: sess.ChatID, State: StateAwaitingPhone, StartedAt: now, UpdatedAt: now}
	if err := m.store.Put(ctx, fresh); err != nil {
		return err
	}
	return send(Reply{Text: m.texts.AskPhone, Keyboard: KeyboardContact})
}

func (m *Machine) handleCancel(ctx context.Context, sess Session, send func(Reply) error) error {
	if sess.State == StateEnded || sess.State == StateUnauthenticated {
		return nil
	}
	sess.State = StateEnded
	sess.UpdatedAt = m.clock().UTC()
	if err := m.store.Put(ctx, sess); err != nil {
		return err
	}
	return send(Reply{Text: m.texts.Farewell, Keyboard: KeyboardRemove})
}

func (m *Machine) handleContact(ctx context.Context, sess Session, in Input, send func(Reply) error) error {
	if sess.State != StateAwaitingPhone {
		return nil
	}

	member, ok := m.dir.Authenticate(ctx, in.Phone, in.ChatID)
	now := m.clock().UTC()
	if !ok {
		// Terminal for the session: no retry without a fresh start.
		sess.State = StateEnded
		sess.UpdatedAt = now
		if err := m.store.Put(ctx, sess); err != nil {
			return err
		}
		m.log.Info("verification denied", "chat_id", sess.ChatID)
		return send(Reply{Text: m.texts.AccessDenied, Keyboard: KeyboardRemove})
	}

	sess.State = StateAuthenticated
	sess.VerifiedPhone = member.Phone
	sess.DisplayName = member.DisplayName
	sess.UpdatedAt = now
	if err := m.store.Put(ctx, sess); err != nil {
		return err
	}
	m.log.Info("verification ok", "chat_id", sess.ChatID, "member", member.DisplayName)

	if err := send(Reply{Text: fmt.Sprintf(m.texts.WelcomeFormat, member.DisplayName), Keyboard: KeyboardRemove}); err != nil {
		return err
	}
	return send(Reply{Text: m.texts.MenuPrompt, Keyboard: KeyboardMenu})
}

func (m *Machine) handleText(ctx context.Context, sess Session, in Input, send func(Reply) error) error {
	switch sess.State {
	case StateAwaitingPhone:
		// Not a credential: reprompt, unlimited retries.
		return send(Reply{Text: m.texts.RepromptPhone})
	case StateAuthenticated:
		return m.menu.Route(ctx, sess, in.Text, send)
	default:
		// Unauthenticated or Ended: the conversation has no handler here.
		return nil
	}
}
