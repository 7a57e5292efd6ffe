package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/event-reservations/internal/model"
	"github.com/iliyamo/event-reservations/internal/utils"
)

// NewUser carries the fields required to register an account.  Password is
// the plain text password; it is hashed before it reaches the database.
type NewUser struct {
	FirstName   string
	LastName    string
	Email       string
	Password    string
	Role        string
	DateOfBirth time.Time
	Gender      *string
	Phone       string
	Address     *model.Address
}

// UserPatch lists the mutable profile fields.  Nil fields are left as is.
type UserPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Gender    *string
	Password  *string
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "u.id, u.first_name, u.last_name, u.email, u.password_hash, u.role, u.date_of_birth, u.gender, u.phone, u.is_active, u.created_at, u.updated_at, " +
	"a.id, a.street, a.city, a.postal_code, a.country"

const userFrom = " FROM users u LEFT JOIN addresses a ON a.user_id = u.id"

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u                             model.User
		gender                        sql.NullString
		addrID                        sql.NullInt64
		street, city, postal, country sql.NullString
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.Role,
		&u.DateOfBirth, &gender, &u.Phone, &u.IsActive, &u.CreatedAt, &u.UpdatedAt,
		&addrID, &street, &city, &postal, &country)
	if err != nil {
		return nil, notFound(err)
	}
	u.Gender = strPtr(gender)
	if addrID.Valid {
		u.Address = &model.Address{
			ID:         uint64(addrID.Int64),
			UserID:     u.ID,
			Street:     street.String,
			City:       city.String,
			PostalCode: postal.String,
			Country:    country.String,
		}
	}
	return &u, nil
}

// Create inserts the user together with its optional address and returns
// the new ID.  Both rows are written in one transaction.
func (r *UserRepo) Create(ctx context.Context, nu NewUser, cost int) (uint64, error) {
	email := strings.ToLower(strings.TrimSpace(nu.Email))
	hash, err := utils.HashPassword(nu.Password, cost)
	if err != nil {
		return 0, err
	}
	role := nu.Role
	if role == "" {
		role = model.RoleUser
	}

	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (first_name, last_name, email, password_hash, role, date_of_birth, gender, phone) VALUES (?,?,?,?,?,?,?,?)",
		nu.FirstName, nu.LastName, email, hash, role, nu.DateOfBirth, nullString(nu.Gender), nu.Phone)
	if err != nil {
		if IsDuplicateKey(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	if a := nu.Address; a != nil {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO addresses (user_id, street, city, postal_code, country) VALUES (?,?,?,?,?)",
			id, a.Street, a.City, a.PostalCode, a.Country); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.email = ? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+userFrom+" WHERE u.id = ? LIMIT 1", id))
}

// List returns up to limit users ordered by id.
func (r *UserRepo) List(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+userColumns+userFrom+" ORDER BY u.id LIMIT ? OFFSET ?", limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

// Update applies a partial profile update.  Changing the email to one that
// belongs to another account yields ErrEmailExists.
func (r *UserRepo) Update(ctx context.Context, id uint64, p UserPatch, cost int) (*model.User, error) {
	sets := make([]string, 0, 6)
	args := make([]any, 0, 7)
	if p.FirstName != nil {
		sets = append(sets, "first_name = ?")
		args = append(args, *p.FirstName)
	}
	if p.LastName != nil {
		sets = append(sets, "last_name = ?")
		args = append(args, *p.LastName)
	}
	if p.Email != nil {
		sets = append(sets, "email = ?")
		args = append(args, strings.ToLower(strings.TrimSpace(*p.Email)))
	}
	if p.Phone != nil {
		sets = append(sets, "phone = ?")
		args = append(args, *p.Phone)
	}
	if p.Gender != nil {
		sets = append(sets, "gender = ?")
		args = append(args, *p.Gender)
	}
	if p.Password != nil {
		hash, err := utils.HashPassword(*p.Password, cost)
		if err != nil {
			return nil, err
		}
		sets = append(sets, "password_hash = ?")
		args = append(args, hash)
	}
	if len(sets) > 0 {
		args = append(args, id)
		res, err := r.DB.ExecContext(ctx,
			"UPDATE users SET "+strings.Join(sets, ", ")+" WHERE id = ?", args...)
		if err != nil {
			if IsDuplicateKey(err) {
				return nil, ErrEmailExists
			}
			return nil, err
		}
		// RowsAffected is 0 for a no-op update too, so existence is
		// decided by the read below.
		_, _ = res.RowsAffected()
	}
	return r.GetByID(ctx, id)
}

// LockForDeleteTx locks the user row so that no booking can attach itself
// to the account while it is being removed.
func (r *UserRepo) LockForDeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id = ? FOR UPDATE", id).Scan(&got)
	return notFound(err)
}

// ExistsTx checks the user exists and holds a shared lock on the row until
// the transaction ends.
func (r *UserRepo) ExistsTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx, "SELECT id FROM users WHERE id = ? LOCK IN SHARE MODE", id).Scan(&got)
	return notFound(err)
}

// DeleteAddressTx removes the user's address, if any.
func (r *UserRepo) DeleteAddressTx(ctx context.Context, tx *sql.Tx, userID uint64) (int64, error) {
	res, err := tx.ExecContext(ctx, "DELETE FROM addresses WHERE user_id = ?", userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteTx removes the user row itself.
func (r *UserRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound is a small helper for callers that only hold an error.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
