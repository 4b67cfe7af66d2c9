package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id SERIAL PRIMARY KEY,
            tourist_id INT NOT NULL,
            guide_id INT NOT NULL,
            destination TEXT NOT NULL DEFAULT '',
            start_date TIMESTAMPTZ,
            end_date TIMESTAMPTZ,
            status TEXT NOT NULL DEFAULT 'pending',
            post_tour_expiry TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS chats (
            id SERIAL PRIMARY KEY,
            tourist_id INT NOT NULL,
            guide_id INT NOT NULL,
            booking_id INT REFERENCES bookings(id),
            status TEXT NOT NULL DEFAULT 'ACTIVE',
            post_tour_expiry TIMESTAMPTZ,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            UNIQUE (booking_id)
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS chats_direct_pair
            ON chats (tourist_id, guide_id) WHERE booking_id IS NULL;`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            chat_id INT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id INT NOT NULL,
            sender_role TEXT NOT NULL,
            message_type TEXT NOT NULL DEFAULT 'TEXT',
            content TEXT NOT NULL,
            is_read BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS messages_chat_created
            ON messages (chat_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id SERIAL PRIMARY KEY,
            recipient_id INT NOT NULL,
            kind TEXT NOT NULL,
            booking_id INT,
            body TEXT NOT NULL DEFAULT '',
            is_read BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS notifications_recipient
            ON notifications (recipient_id, created_at);`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
