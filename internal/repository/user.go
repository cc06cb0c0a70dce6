package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tokengate/tokengate-go/internal/model"
)

const userColumns = `id, username, email, phone, name, avatar, password_hash, created_at, last_login_at`

// dialect captures what differs between the SQL backends.
type dialect struct {
	placeholder func(n int) string
	isDuplicate func(err error) bool
}

var dialects = map[string]dialect{
	DriverMySQL: {
		placeholder: questionMark,
		isDuplicate: func(err error) bool {
			var myErr *mysql.MySQLError
			return errors.As(err, &myErr) && myErr.Number == 1062
		},
	},
	DriverSQLite: {
		placeholder: questionMark,
		isDuplicate: func(err error) bool {
			return strings.Contains(err.Error(), "UNIQUE constraint failed")
		},
	},
	DriverPostgres: {
		placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
		isDuplicate: func(err error) bool {
			var pgErr *pgconn.PgError
			return errors.As(err, &pgErr) && pgErr.Code == "23505"
		},
	},
}

func questionMark(int) string { return "?" }

// SQLUserRepository stores accounts in the users table of a MySQL, SQLite or
// PostgreSQL database.
type SQLUserRepository struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLUserRepository creates a repository for db using the SQL flavour of
// driver (one of DriverMySQL, DriverSQLite, DriverPostgres).
func NewSQLUserRepository(db *sql.DB, driver string) (*SQLUserRepository, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
	return &SQLUserRepository{db: db, dialect: d}, nil
}

func (r *SQLUserRepository) FindUserByIdentifier(ctx context.Context, identifier string) (*model.Account, error) {
	if identifier == "" {
		return nil, ErrUserNotFound
	}

	column := "username"
	switch DetectIdentifierKind(identifier) {
	case KindEmail:
		column = "email"
	case KindPhone:
		column = "phone"
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = %s`, userColumns, column, r.dialect.placeholder(1))
	return r.scanOne(r.db.QueryRowContext(ctx, query, identifier))
}

func (r *SQLUserRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE id = %s`, userColumns, r.dialect.placeholder(1))
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// Create inserts acct. Empty username, email and phone are stored as NULL so
// the unique indexes only apply to values that are present.
func (r *SQLUserRepository) Create(ctx context.Context, acct *model.Account) error {
	ph := make([]string, 9)
	for i := range ph {
		ph[i] = r.dialect.placeholder(i + 1)
	}
	query := fmt.Sprintf(`INSERT INTO users (%s) VALUES (%s)`, userColumns, strings.Join(ph, ", "))

	_, err := r.db.ExecContext(ctx, query,
		acct.ID,
		nullString(acct.Username),
		nullString(acct.Email),
		nullString(acct.Phone),
		acct.Name,
		acct.Avatar,
		acct.PasswordHash,
		acct.CreatedAt,
		acct.LastLoginAt,
	)
	if err != nil {
		if r.dialect.isDuplicate(err) {
			return ErrDuplicateAccount
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *SQLUserRepository) UpdateLastLogin(ctx context.Context, id string, at time.Time) error {
	query := fmt.Sprintf(`UPDATE users SET last_login_at = %s WHERE id = %s`,
		r.dialect.placeholder(1), r.dialect.placeholder(2))

	res, err := r.db.ExecContext(ctx, query, FormatTime(at), id)
	if err != nil {
		return fmt.Errorf("updating last login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func (r *SQLUserRepository) scanOne(row *sql.Row) (*model.Account, error) {
	var (
		acct                   model.Account
		username, email, phone sql.NullString
	)

	err := row.Scan(
		&acct.ID, &username, &email, &phone,
		&acct.Name, &acct.Avatar, &acct.PasswordHash,
		&acct.CreatedAt, &acct.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning user: %w", err)
	}

	acct.Username = username.String
	acct.Email = email.String
	acct.Phone = phone.String
	return &acct, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
