package bot

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"gatebot/internal/session"
)

func messageUpdate(chatID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chatID},
		Text: text,
	}}
}

func TestTranslate_Commands(t *testing.T) {
	in, ok := translate(messageUpdate(5, "/start"))
	if !ok || in.Kind != session.KindStart || in.ChatID != 5 {
		t.Fatalf("unexpected start input: %+v ok=%v", in, ok)
	}

	in, ok = translate(messageUpdate(5, "/cancel"))
	if !ok || in.Kind != session.KindCancel {
		t.Fatalf("unexpected cancel input: %+v ok=%v", in, ok)
	}
}

func TestTranslate_Contact(t *testing.T) {
	upd := tgbotapi.Update{Message: &tgbotapi.Message{
		Chat:    &tgbotapi.Chat{ID: 9},
		Contact: &tgbotapi.Contact{PhoneNumber: "79990001122"},
	}}
	in, ok := translate(upd)
	if !ok || in.Kind != session.KindContact || in.Phone != "79990001122" {
		t.Fatalf("unexpected contact input: %+v ok=%v", in, ok)
	}
}

func TestTranslate_FreeText(t *testing.T) {
	in, ok := translate(messageUpdate(7, "  📰 Новости  "))
	if !ok || in.Kind != session.KindText || in.Text != "📰 Новости" {
		t.Fatalf("unexpected text input: %+v ok=%v", in, ok)
	}
}

type ctxRecorder struct {
	got chan context.Context
}

func (r *ctxRecorder) Handle(ctx context.Context, in session.Input) error {
	r.got <- ctx
	return nil
}

// The update must run on the process context: the server kills the request
// context the moment the webhook response is written, while the dispatch
// behind the update may still be mid-call.
func TestWebhookHandler_UpdateOutlivesRequestContext(t *testing.T) {
	rec := &ctxRecorder{got: make(chan context.Context, 1)}
	b := &Bot{
		Handler: rec,
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", b.WebhookHandler(context.Background()))

	reqCtx, cancelReq := context.WithCancel(context.Background())
	body := `{"message":{"chat":{"id":1},"text":"/start"}}`
	req := httptest.NewRequest("POST", "/webhook", strings.NewReader(body)).WithContext(reqCtx)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	cancelReq()

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	select {
	case ctx := <-rec.got:
		if ctx.Err() != nil {
			t.Fatalf("handler context died with the request: %v", ctx.Err())
		}
	case <-time.After(time.Second):
		t.Fatal("update was never handled")
	}
}

func TestWebhookHandler_RejectsMalformedBody(t *testing.T) {
	b := &Bot{
		Handler: &ctxRecorder{got: make(chan context.Context, 1)},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhook", b.WebhookHandler(context.Background()))

	req := httptest.NewRequest("POST", "/webhook", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != 400 {
		t.Fatalf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestTranslate_DropsNonMessageUpdates(t *testing.T) {
	if _, ok := translate(tgbotapi.Update{}); ok {
		t.Fatal("expected update without message to be dropped")
	}
	if _, ok := translate(messageUpdate(1, "   ")); ok {
		t.Fatal("expected empty text to be dropped")
	}
}
