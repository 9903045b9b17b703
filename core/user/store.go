package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
)

var ErrEmailTaken = errors.New("email already registered")

func Create(ctx context.Context, db sqlx.ExtContext, usr User) error {
	const q = `
	INSERT INTO users
		(user_id, email, password_hash, role, created_at, updated_at)
	VALUES
		(:user_id, :email, :password_hash, :role, :created_at, :updated_at)`

	usr.Email = strings.ToLower(usr.Email)
	if _, err := sqlx.NamedExecContext(ctx, db, q, usr); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (User, error) {
	const q = `
	SELECT
		user_id, email, password_hash, role, created_at, updated_at
	FROM users
	WHERE user_id = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, id); err != nil {
		return User{}, fmt.Errorf("selecting user[%s]: %w", id, database.NotFound(err))
	}
	return usr, nil
}

func FetchByEmail(ctx context.Context, db sqlx.ExtContext, email string) (User, error) {
	const q = `
	SELECT
		user_id, email, password_hash, role, created_at, updated_at
	FROM users
	WHERE email = $1`

	var usr User
	if err := sqlx.GetContext(ctx, db, &usr, q, strings.ToLower(email)); err != nil {
		return User{}, fmt.Errorf("selecting user by email: %w", database.NotFound(err))
	}
	return usr, nil
}
