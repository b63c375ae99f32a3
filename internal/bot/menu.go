package bot

import (
	"context"
	"log/slog"

	"gatebot/internal/dispatch"
	"gatebot/internal/session"
)

// Menu button labels. These double as the match keys for incoming text, so
// they must stay byte-identical to what the keyboard renders.
const (
	CmdDues    = "💰 Взносы"
	CmdNews    = "📰 Новости"
	CmdChat    = "💬 Чат"
	CmdGate    = "🚪 Открыть ворота"
	CmdDebtors = "⚠️ Должники"
)

const (
	gateCalling = "📞 Звоню на ворота..."
	gateOpened  = "✅ Ворота открываются. Звонок отправлен."
	gateFailed  = "❌ Ошибка при звонке. Попробуйте позже."

	menuFallback    = "Выберите раздел из меню."
	chatUnavailable = "Ссылка на чат временно недоступна."
)

// Content supplies the informational sections.
type Content interface {
	News() string
	Debtors() string
	ChatLink() string
	PaymentLink() string
	Requisites() string
}

// GateDispatcher places the gate-open call chain.
type GateDispatcher interface {
	Dispatch(ctx context.Context) dispatch.Result
}

// Menu routes authenticated free text to the command handlers. It never
// touches session state; unknown input gets the generic reminder.
type Menu struct {
	content Content
	gate    GateDispatcher
	log     *slog.Logger
}

func NewMenu(content Content, gate GateDispatcher, log *slog.Logger) *Menu {
	return &Menu{content: content, gate: gate, log: log}
}

func (m *Menu) Route(ctx context.Context, sess session.Session, text string, send func(session.Reply) error) error {
	switch text {
	case CmdDues:
		return send(session.Reply{Text: m.duesText(), Markdown: true})
	case CmdNews:
		return send(session.Reply{Text: m.content.News()})
	case CmdChat:
		link := m.content.ChatLink()
		if link == "" {
			return send(session.Reply{Text: chatUnavailable})
		}
		return send(session.Reply{Text: "💬 Перейдите в чат СНТ: " + link})
	case CmdGate:
		return m.openGate(ctx, sess, send)
	case CmdDebtors:
		return send(session.Reply{Text: m.content.Debtors()})
	default:
		return send(session.Reply{Text: menuFallback})
	}
}

func (m *Menu) duesText() string {
	text := "💰 *Информация о взносах 2025 года:*\n" +
		"- Членский: 5000₽\n" +
		"- Целевой: 3000₽\n\n" +
		m.content.Requisites()
	if link := m.content.PaymentLink(); link != "" {
		text += "\n\n[Перейти к оплате](" + link + ")"
	}
	return text
}

// openGate acknowledges immediately, then runs the provider chain and
// reports the terminal outcome. The chain itself bounds how long this takes.
func (m *Menu) openGate(ctx context.Context, sess session.Session, send func(session.Reply) error) error {
	if err := send(session.Reply{Text: gateCalling}); err != nil {
		return err
	}

	res := m.gate.Dispatch(ctx)
	m.log.Info("gate open requested",
		"chat_id", sess.ChatID,
		"phone", sess.VerifiedPhone,
		"dispatch_id", res.ID,
		"success", res.Success,
	)

	if res.Success {
		return send(session.Reply{Text: gateOpened})
	}
	return send(session.Reply{Text: gateFailed})
}
