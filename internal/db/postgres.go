package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"atsboost/internal/config"
	"atsboost/internal/models"
)

// MessagesChannel is the NOTIFY channel fed by the messages insert trigger.
const MessagesChannel = "messages_insert"

type PostgresDB struct {
	pool *pgxpool.Pool
}

func NewPostgresDB(cfg config.DBConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s pool_max_conns=%d",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode, cfg.MaxOpenConns,
	)

	poolConfig, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DB connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnLifetime
	poolConfig.MaxConnIdleTime = 15 * time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.ConnectConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}

// ListMessages returns the user's thread, oldest first.
func (db *PostgresDB) ListMessages(ctx context.Context, userID string) ([]models.Message, error) {
	query := `
        SELECT id::text, user_id, content, is_expert, created_at, COALESCE(attachment_url, '')
        FROM messages
        WHERE user_id = $1
        ORDER BY created_at ASC
    `

	rows, err := db.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.UserID, &m.Content, &m.IsExpert, &m.CreatedAt, &m.AttachmentURL); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// GetMessage loads one message by id.
func (db *PostgresDB) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	query := `
        SELECT id::text, user_id, content, is_expert, created_at, COALESCE(attachment_url, '')
        FROM messages
        WHERE id = $1::uuid
    `

	var m models.Message
	err := db.pool.QueryRow(ctx, query, id).Scan(
		&m.ID, &m.UserID, &m.Content, &m.IsExpert, &m.CreatedAt, &m.AttachmentURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrMessageNotFound
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	return &m, nil
}

func (db *PostgresDB) InsertMessage(ctx context.Context, msg models.NewMessage) (*models.Message, error) {
	query := `
        INSERT INTO messages (user_id, content, is_expert, attachment_url)
        VALUES ($1, $2, $3, NULLIF($4, ''))
        RETURNING id::text, created_at
    `

	m := models.Message{
		UserID:        msg.UserID,
		Content:       msg.Content,
		IsExpert:      msg.IsExpert,
		AttachmentURL: msg.AttachmentURL,
	}
	err := db.pool.QueryRow(ctx, query,
		msg.UserID, msg.Content, msg.IsExpert, msg.AttachmentURL,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert message: %w", err)
	}

	return &m, nil
}

func (db *PostgresDB) SaveOrder(ctx context.Context, order *models.Order) error {
	query := `
        INSERT INTO orders (user_id, plan_id, amount, currency, provider_ref, status)
        VALUES ($1, $2, $3, $4, $5, $6)
        RETURNING id, created_at, updated_at
    `

	err := db.pool.QueryRow(ctx, query,
		order.UserID, order.PlanID, order.Amount, order.Currency,
		order.ProviderRef, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}

	return nil
}

func (db *PostgresDB) UpdateOrderStatus(ctx context.Context, providerRef, status string) error {
	query := `
        UPDATE orders
        SET status = $2, updated_at = NOW()
        WHERE provider_ref = $1
    `

	tag, err := db.pool.Exec(ctx, query, providerRef, status)
	if err != nil {
		return fmt.Errorf("failed to update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrOrderNotFound
	}
	return nil
}

func (db *PostgresDB) GetOrderByProviderRef(ctx context.Context, providerRef string) (*models.Order, error) {
	query := `
        SELECT id, user_id, plan_id, amount, currency, provider_ref, status, created_at, updated_at
        FROM orders
        WHERE provider_ref = $1
    `

	var o models.Order
	err := db.pool.QueryRow(ctx, query, providerRef).Scan(
		&o.ID, &o.UserID, &o.PlanID, &o.Amount, &o.Currency,
		&o.ProviderRef, &o.Status, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return &o, nil
}

// Listen holds one pooled connection on LISTEN channel and calls fn for every
// notification until ctx ends or the connection fails.
func (db *PostgresDB) Listen(ctx context.Context, channel string, fn func(payload string)) error {
	conn, err := db.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire listen connection: %w", err)
	}
	defer func() {
		// Don't hand a listening connection back to the pool.
		conn.Exec(context.Background(), "UNLISTEN *")
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize()); err != nil {
		return fmt.Errorf("failed to listen on %s: %w", channel, err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		fn(n.Payload)
	}
}
