package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jonesrussell/north-cloud/question-crawler/internal/domain"
	"github.com/jonesrussell/north-cloud/question-crawler/internal/logger"
)

const (
	// DefaultMaxOpenConns is the default maximum number of open connections.
	DefaultMaxOpenConns = 5
	// DefaultMaxIdleConns is the default maximum number of idle connections.
	DefaultMaxIdleConns = 2
	// DefaultConnMaxLifetime is the default maximum connection lifetime.
	DefaultConnMaxLifetime = 5 * time.Minute
	// DefaultPingTimeout bounds the connection check.
	DefaultPingTimeout = 5 * time.Second
)

// questionColumns is the column order of every inserted row.
var questionColumns = []string{
	"question_id", "dedup_key", "module", "difficulty", "skill_cd", "skill_desc",
	"content", "program", "provenance", "active",
}

// PostgresConfig holds connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN renders the lib/pq connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// OpenPostgres connects, tunes the pool and pings the database.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, DefaultPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(pingCtx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}

// PostgresSink upserts questions with one multi-row statement per batch.
type PostgresSink struct {
	db    *sqlx.DB
	table string
	log   logger.Logger
}

// NewPostgresSink writes to table through db.
func NewPostgresSink(db *sqlx.DB, table string, log logger.Logger) *PostgresSink {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresSink{
		db:    db,
		table: table,
		log:   log.With(logger.Component("postgres_sink")),
	}
}

// Name implements Sink.
func (s *PostgresSink) Name() string { return "postgres" }

// Upsert implements Sink. The batch commits or rolls back as a whole.
func (s *PostgresSink) Upsert(ctx context.Context, questions []domain.Question) (UpsertResult, error) {
	if len(questions) == 0 {
		return UpsertResult{}, ErrEmptyBatch
	}

	query, args, err := s.buildUpsert(questions)
	if err != nil {
		return UpsertResult{}, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("begin transaction: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.log.Warn("Rollback failed", logger.Error(rbErr))
		}
		return UpsertResult{}, fmt.Errorf("upsert questions: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return UpsertResult{}, fmt.Errorf("commit transaction: %w", commitErr)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = int64(len(questions))
	}

	return UpsertResult{InsertedOrUpdated: int(affected)}, nil
}

func (s *PostgresSink) buildUpsert(questions []domain.Question) (string, []any, error) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pq.QuoteIdentifier(s.table))
	b.WriteString(" (")
	b.WriteString(strings.Join(questionColumns, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(questions)*len(questionColumns))
	for i, q := range questions {
		content, err := json.Marshal(q.Content)
		if err != nil {
			return "", nil, fmt.Errorf("marshal content of %s: %w", q.QuestionID, err)
		}
		provenance, err := json.Marshal(q.Provenance)
		if err != nil {
			return "", nil, fmt.Errorf("marshal provenance of %s: %w", q.QuestionID, err)
		}

		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		base := i * len(questionColumns)
		for j := range questionColumns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", base+j+1)
		}
		b.WriteByte(')')

		args = append(args,
			q.QuestionID, q.DedupKey, q.Module, q.Difficulty, q.SkillCode, q.SkillDescription,
			string(content), q.Program, string(provenance), q.Active,
		)
	}

	b.WriteString(" ON CONFLICT (question_id) DO UPDATE SET ")
	updates := make([]string, 0, len(questionColumns)-1)
	for _, col := range questionColumns[1:] {
		updates = append(updates, col+" = EXCLUDED."+col)
	}
	b.WriteString(strings.Join(updates, ", "))

	return b.String(), args, nil
}
