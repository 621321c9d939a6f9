package db

import (
	"context"
	"fmt"
)

// schema is idempotent. The trigger publishes only the id and owner of each
// inserted message on MessagesChannel; NOTIFY payloads are capped at 8000 bytes
// and message content is not.
const schema = `
CREATE EXTENSION IF NOT EXISTS pgcrypto;

CREATE TABLE IF NOT EXISTS messages (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    user_id        TEXT NOT NULL,
    content        TEXT NOT NULL,
    is_expert      BOOLEAN NOT NULL DEFAULT FALSE,
    attachment_url TEXT,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS messages_user_created_idx ON messages (user_id, created_at);

CREATE TABLE IF NOT EXISTS orders (
    id           BIGSERIAL PRIMARY KEY,
    user_id      TEXT NOT NULL,
    plan_id      TEXT NOT NULL,
    amount       BIGINT NOT NULL,
    currency     TEXT NOT NULL,
    provider_ref TEXT NOT NULL UNIQUE,
    status       TEXT NOT NULL,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE FUNCTION notify_message_insert() RETURNS trigger AS $$
BEGIN
    PERFORM pg_notify('messages_insert', json_build_object('id', NEW.id, 'user_id', NEW.user_id)::text);
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS messages_insert_notify ON messages;
CREATE TRIGGER messages_insert_notify
    AFTER INSERT ON messages
    FOR EACH ROW EXECUTE FUNCTION notify_message_insert();
`

// Migrate creates the tables and the realtime trigger.
func (db *PostgresDB) Migrate(ctx context.Context) error {
	if _, err := db.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
