package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"

	"shopfront_back_end/internal/apperr"
	"shopfront_back_end/internal/models"
)

const userColumns = "user_id, name, email, password, role, cart_data, created_at"

type UserStore struct {
	session *gocql.Session
}

func NewUserStore(session *gocql.Session) *UserStore {
	return &UserStore{session: session}
}

func (s *UserStore) FindByID(ctx context.Context, id string) (*models.User, error) {
	uid, err := parseID("user", id)
	if err != nil {
		return nil, err
	}

	var (
		u        models.User
		userID   gocql.UUID
		cartData map[string]map[string]int
	)
	err = s.session.Query(`SELECT `+userColumns+` FROM users WHERE user_id = ?`, uid).
		WithContext(ctx).
		Scan(&userID, &u.Name, &u.Email, &u.Password, &u.Role, &cartData, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err, "user", id)
	}
	u.ID = userID.String()
	u.CartData = models.CartData(cartData).Clone()
	return &u, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var uid gocql.UUID
	err := s.session.Query(`SELECT user_id FROM users_by_email WHERE email = ?`, email).
		WithContext(ctx).
		Scan(&uid)
	if err != nil {
		return nil, notFound(err, "user with email", email)
	}
	return s.FindByID(ctx, uid.String())
}

// Create claims the email with a lightweight transaction, then writes the user row.
// A taken email yields an apperr.ErrConflict.
func (s *UserStore) Create(ctx context.Context, u *models.User) error {
	uid := gocql.TimeUUID()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	applied, err := s.session.Query(`INSERT INTO users_by_email (email, user_id) VALUES (?, ?) IF NOT EXISTS`, u.Email, uid).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("claim email: %w", err)
	}
	if !applied {
		return fmt.Errorf("email %s: %w", u.Email, apperr.ErrConflict)
	}

	cart := u.CartData.Clone()
	err = s.session.Query(`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uid, u.Name, u.Email, u.Password, u.Role, map[string]map[string]int(cart), u.CreatedAt).
		WithContext(ctx).
		Exec()
	if err != nil {
		// release the email so the user can retry
		_ = s.session.Query(`DELETE FROM users_by_email WHERE email = ?`, u.Email).WithContext(ctx).Exec()
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID = uid.String()
	u.CartData = cart
	return nil
}

// UpdateCart overwrites the whole cart map of the user.
func (s *UserStore) UpdateCart(ctx context.Context, id string, cart models.CartData) error {
	uid, err := parseID("user", id)
	if err != nil {
		return err
	}
	err = s.session.Query(`UPDATE users SET cart_data = ? WHERE user_id = ?`,
		map[string]map[string]int(cart.Clone()), uid).
		WithContext(ctx).
		Exec()
	if err != nil {
		return fmt.Errorf("update cart of user %s: %w", id, err)
	}
	return nil
}

// SetRole changes the role of the user, e.g. to promote an operator to admin.
func (s *UserStore) SetRole(ctx context.Context, id, role string) error {
	uid, err := parseID("user", id)
	if err != nil {
		return err
	}
	applied, err := s.session.Query(`UPDATE users SET role = ? WHERE user_id = ? IF EXISTS`, role, uid).
		WithContext(ctx).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return fmt.Errorf("set role of user %s: %w", id, err)
	}
	if !applied {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}
