// Package content serves the informational menu sections whose material
// lives outside the binary: news and debtor lists from files on disk,
// links and payment requisites from configuration.
package content

import (
	"log/slog"
	"os"
	"strings"

	"gatebot/internal/config"
)

const (
	newsHeader         = "📰 Последние новости СНТ:\n\n"
	newsUnavailable    = "📰 Новости временно недоступны."
	newsEmpty          = "Пока нет новостей."
	debtorsHeader      = "⚠️ Должники СНТ:\n\n"
	debtorsUnavailable = "⚠️ Информация о должниках временно недоступна."
	debtorsEmpty       = "Должников нет. Спасибо всем за своевременную оплату!"
)

// Service reads the content files on every request so edits to the files
// show up without a restart.
type Service struct {
	cfg config.ContentConfig
	log *slog.Logger
}

func NewService(cfg config.ContentConfig, log *slog.Logger) *Service {
	return &Service{cfg: cfg, log: log}
}

// News returns the current news bulletin under its section header. Read
// failures degrade to a user-facing unavailability notice rather than an
// error.
func (s *Service) News() string {
	return s.readFile(s.cfg.NewsFile, newsHeader, newsEmpty, newsUnavailable)
}

// Debtors returns the current debtor list with the same degradation rules
// as News.
func (s *Service) Debtors() string {
	return s.readFile(s.cfg.DebtorsFile, debtorsHeader, debtorsEmpty, debtorsUnavailable)
}

func (s *Service) ChatLink() string    { return s.cfg.ChatLink }
func (s *Service) PaymentLink() string { return s.cfg.PaymentLink }
func (s *Service) Requisites() string  { return s.cfg.Requisites }

func (s *Service) readFile(path, header, emptyText, unavailableText string) string {
	raw, err := os.ReadFile(path)
	if err != nil {
		s.log.Warn("content file unreadable", "path", path, "error", err)
		return unavailableText
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return emptyText
	}
	return header + text
}
