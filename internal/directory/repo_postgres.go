package directory

import (
	"context"
	"database/sql"

	"gatebot/pkg/utils"
)

// PostgresRepository reads the member set from a residents table:
//
//	CREATE TABLE residents (
//	  phone        TEXT PRIMARY KEY,
//	  display_name TEXT NOT NULL,
//	  chat_id      BIGINT NOT NULL DEFAULT 0
//	);
//
// Unlike the file backend it also persists the chat-identity bind, so
// verified residents survive a restart.
type PostgresRepository struct {
	DB *sql.DB
}

func (r *PostgresRepository) Load(ctx context.Context) ([]Member, error) {
	const q = `
SELECT phone, display_name, chat_id
FROM residents
`
	rows, err := r.DB.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.Phone, &m.DisplayName, &m.ChatID); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *PostgresRepository) SaveBinding(ctx context.Context, phone string, chatID int64) error {
	return utils.WithTx(ctx, r.DB, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		const q = `
UPDATE residents
SET chat_id = $2
WHERE phone = $1
`
		res, err := tx.ExecContext(ctx, q, phone, chatID)
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
}
