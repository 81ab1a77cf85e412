package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"refinery/internal/logging"
)

// SQL is a Store on database/sql. Queries are written with ? placeholders
// and rebound for the dialect.
type SQL struct {
	db      *sql.DB
	dialect string
	clock   clock
	log     *zap.Logger
}

var schemas = map[string][]string{
	"sqlite": {
		`CREATE TABLE IF NOT EXISTS chats (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_ts)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id)`,
	},
	"postgres": {
		`CREATE TABLE IF NOT EXISTS chats (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_chats_user ON chats(user_id, created_ts)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id         BIGSERIAL PRIMARY KEY,
			chat_id    TEXT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
			role       TEXT NOT NULL,
			content    TEXT NOT NULL,
			created_ts BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_chat ON messages(chat_id, id)`,
	},
	// MySQL has no CREATE INDEX IF NOT EXISTS, so indexes are inline.
	"mysql": {
		"CREATE TABLE IF NOT EXISTS `chats` (" +
			"`id` VARCHAR(64) NOT NULL PRIMARY KEY," +
			"`user_id` VARCHAR(256) NOT NULL," +
			"`created_ts` BIGINT NOT NULL," +
			"INDEX `idx_chats_user` (`user_id`, `created_ts`))",
		"CREATE TABLE IF NOT EXISTS `messages` (" +
			"`id` BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY," +
			"`chat_id` VARCHAR(64) NOT NULL," +
			"`role` VARCHAR(32) NOT NULL," +
			"`content` MEDIUMTEXT NOT NULL," +
			"`created_ts` BIGINT NOT NULL," +
			"INDEX `idx_messages_chat` (`chat_id`, `id`)," +
			"CONSTRAINT `fk_messages_chat` FOREIGN KEY (`chat_id`) REFERENCES `chats`(`id`) ON DELETE CASCADE)",
	},
}

// OpenSQL opens the database for driver (sqlite, postgres or mysql) and
// creates the schema if needed.
func OpenSQL(ctx context.Context, driver, dsn string) (*SQL, error) {
	if _, ok := schemas[driver]; !ok {
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s: dsn required", driver)
	}

	if driver == "sqlite" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == "sqlite" {
		// One connection keeps :memory: databases intact and avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}

	s := &SQL{db: db, dialect: driver, log: logging.Get(logging.CategoryStore)}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Info("store opened", zap.String("driver", driver))
	return s, nil
}

// initialize creates the required tables.
func (s *SQL) initialize(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", s.dialect, err)
	}
	if s.dialect == "sqlite" {
		for _, pragma := range []string{"PRAGMA busy_timeout = 5000", "PRAGMA foreign_keys = ON"} {
			if _, err := s.db.ExecContext(ctx, pragma); err != nil {
				return fmt.Errorf("failed to set %q: %w", pragma, err)
			}
		}
	}
	for _, stmt := range schemas[s.dialect] {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders as $1, $2, ... for postgres.
func (s *SQL) rebind(query string) string {
	if s.dialect != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQL) CreateChat(ctx context.Context, userID string) (Chat, error) {
	c := Chat{ID: uuid.NewString(), UserID: userID, CreatedAt: s.clock.now()}
	_, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO chats (id, user_id, created_ts) VALUES (?, ?, ?)"),
		c.ID, c.UserID, c.CreatedAt.UnixNano(),
	)
	if err != nil {
		s.log.Error("create chat failed", zap.Error(err))
		return Chat{}, fmt.Errorf("failed to create chat: %w", err)
	}
	return c, nil
}

func (s *SQL) GetChat(ctx context.Context, id string) (Chat, error) {
	var (
		c  Chat
		ts int64
	)
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT id, user_id, created_ts FROM chats WHERE id = ?"), id,
	).Scan(&c.ID, &c.UserID, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Chat{}, ErrNotFound
	}
	if err != nil {
		return Chat{}, fmt.Errorf("failed to get chat: %w", err)
	}
	c.CreatedAt = time.Unix(0, ts).UTC()
	return c, nil
}

func (s *SQL) AddMessage(ctx context.Context, chatID, role, content string) (Message, error) {
	if _, err := s.GetChat(ctx, chatID); err != nil {
		return Message{}, err
	}

	m := Message{ChatID: chatID, Role: role, Content: content, CreatedAt: s.clock.now()}
	const insert = "INSERT INTO messages (chat_id, role, content, created_ts) VALUES (?, ?, ?, ?)"
	args := []any{chatID, role, content, m.CreatedAt.UnixNano()}

	if s.dialect == "postgres" {
		if err := s.db.QueryRowContext(ctx, s.rebind(insert+" RETURNING id"), args...).Scan(&m.ID); err != nil {
			return Message{}, fmt.Errorf("failed to add message: %w", err)
		}
		return m, nil
	}

	res, err := s.db.ExecContext(ctx, insert, args...)
	if err != nil {
		return Message{}, fmt.Errorf("failed to add message: %w", err)
	}
	if m.ID, err = res.LastInsertId(); err != nil {
		return Message{}, fmt.Errorf("failed to read message id: %w", err)
	}
	return m, nil
}

func (s *SQL) Messages(ctx context.Context, chatID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT id, chat_id, role, content, created_ts FROM messages WHERE chat_id = ? ORDER BY id ASC"),
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	list := []Message{}
	for rows.Next() {
		var (
			m  Message
			ts int64
		)
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m.CreatedAt = time.Unix(0, ts).UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}

func (s *SQL) ListChats(ctx context.Context, userID string, limit int) ([]ChatPreview, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `SELECT c.id, c.created_ts,
		COALESCE((SELECT m.content FROM messages m
		          WHERE m.chat_id = c.id AND m.role = 'user'
		          ORDER BY m.id ASC LIMIT 1), '')
		FROM chats c WHERE c.user_id = ?
		ORDER BY c.created_ts DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list chats: %w", err)
	}
	defer rows.Close()

	var list []ChatPreview
	for rows.Next() {
		var (
			p     ChatPreview
			ts    int64
			first string
		)
		if err := rows.Scan(&p.ID, &ts, &first); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}
		p.CreatedAt = time.Unix(0, ts).UTC()
		p.Title = titleOf(first)
		list = append(list, p)
	}
	return list, rows.Err()
}

func (s *SQL) Close() error {
	return s.db.Close()
}
