package authgate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tablestore"
	"github.com/diewo77/go-backoffice/validation"
)

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

const minPasswordLength = 8

// Accounts handles sign-up, sign-in and password changes against the users table.
type Accounts struct {
	store tablestore.Client
	cost  int
}

// NewAccounts uses bcrypt.DefaultCost.
func NewAccounts(store tablestore.Client) *Accounts {
	return &Accounts{store: store, cost: bcrypt.DefaultCost}
}

func (a *Accounts) findByEmail(ctx context.Context, email string) (*models.User, error) {
	var users []models.User
	err := a.store.Select(ctx, models.TableUsers, &users, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("email", email)},
		Limit:   1,
	})
	if err != nil || len(users) == 0 {
		return nil, err
	}
	return &users[0], nil
}

func validateCredentials(email, password string) validation.Violations {
	v := validation.Violations{}
	validation.Required("email", email, v)
	validation.Required("password", password, v)
	if password != "" && len(password) < minPasswordLength {
		v["password"] = "too_short"
	}
	return v
}

// SignUp creates a user with a bcrypt hashed password.
func (a *Accounts) SignUp(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if v := validateCredentials(email, password); !v.Empty() {
		return nil, v
	}
	existing, err := a.findByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	user := &models.User{Email: email, Password: string(hash), Name: strings.TrimSpace(name)}
	if err := a.store.Insert(ctx, models.TableUsers, user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// SignIn checks the password. Unknown email and wrong password give the same error.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*models.User, error) {
	user, err := a.findByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, err
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// UpdatePassword replaces the password after checking the current one.
func (a *Accounts) UpdatePassword(ctx context.Context, userID uint, current, next string) error {
	var users []models.User
	err := a.store.Select(ctx, models.TableUsers, &users, tablestore.Query{
		Filters: []tablestore.Filter{tablestore.Eq("id", userID)},
		Limit:   1,
	})
	if err != nil {
		return err
	}
	if len(users) == 0 || bcrypt.CompareHashAndPassword([]byte(users[0].Password), []byte(current)) != nil {
		return ErrInvalidCredentials
	}
	if len(next) < minPasswordLength {
		return validation.Violations{"new_password": "too_short"}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), a.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	_, err = a.store.Update(ctx, models.TableUsers,
		map[string]any{"password": string(hash), "updated_at": time.Now()},
		tablestore.Eq("id", userID))
	return err
}
