package directory

import "strings"

// Member is one resident record. Phone is the unique key, already
// normalized. ChatID is the chat identity bound at verification time;
// zero means never verified.
type Member struct {
	Phone       string `json:"phone"`
	DisplayName string `json:"display_name"`
	ChatID      int64  `json:"chat_id,omitempty"`
}

// NormalizePhone ensures the number carries exactly one leading "+".
// No other transformation; idempotent.
func NormalizePhone(phone string) string {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return phone
	}
	if !strings.HasPrefix(phone, "+") {
		return "+" + phone
	}
	return phone
}
