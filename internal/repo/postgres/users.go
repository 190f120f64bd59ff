package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/geocoder89/sosalert/internal/domain/user"
	"github.com/geocoder89/sosalert/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the slice of pgxpool.Pool the repo needs; pgxmock satisfies it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type UsersRepo struct {
	db   DBTX
	prom *observability.Prom
}

func NewUsersRepo(db DBTX, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

const selectUserColumns = `SELECT id, name, email, password_hash, emergency_contacts, created_at FROM users`

func (r *UsersRepo) FindByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_email", func() error {
		var err error
		u, err = r.scanOne(r.db.QueryRow(ctx, selectUserColumns+` WHERE email = $1`, email))
		return err
	})

	return u, err
}

func (r *UsersRepo) FindByID(ctx context.Context, id string) (user.User, error) {
	var u user.User

	err := r.prom.ObserveDB("users.find_by_id", func() error {
		var err error
		u, err = r.scanOne(r.db.QueryRow(ctx, selectUserColumns+` WHERE id = $1`, id))
		return err
	})

	return u, err
}

// Insert relies on the users_email_key unique index to reject duplicates
// that slip past the caller's lookup.
func (r *UsersRepo) Insert(ctx context.Context, u user.User) (user.User, error) {
	contacts, err := json.Marshal(u.EmergencyContacts)
	if err != nil {
		return user.User{}, fmt.Errorf("encode contacts: %w", err)
	}

	err = r.prom.ObserveDB("users.insert", func() error {
		_, err := r.db.Exec(ctx,
			`INSERT INTO users (id, name, email, password_hash, emergency_contacts, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			u.ID, u.Name, u.Email, u.PasswordHash, contacts, u.CreatedAt,
		)
		return err
	})

	if err != nil {
		if IsUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("insert user: %w", err)
	}

	return u, nil
}

func (r *UsersRepo) scanOne(row pgx.Row) (user.User, error) {
	var (
		u        user.User
		contacts []byte
	)

	err := row.Scan(
		&u.ID,
		&u.Name,
		&u.Email,
		&u.PasswordHash,
		&contacts,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	if err := json.Unmarshal(contacts, &u.EmergencyContacts); err != nil {
		return user.User{}, fmt.Errorf("decode contacts: %w", err)
	}

	return u, nil
}
