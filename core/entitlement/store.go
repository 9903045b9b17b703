package entitlement

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
)

// Insert writes uc and bumps the course's purchase counter in one
// transaction. created is false when the pair already existed.
func Insert(ctx context.Context, db *sqlx.DB, uc UserCourse) (created bool, err error) {
	const q = `
	INSERT INTO user_courses
		(user_id, course_id, created_at)
	VALUES
		(:user_id, :course_id, :created_at)`

	err = database.Transaction(ctx, db, func(tx sqlx.ExtContext) error {
		if _, err := sqlx.NamedExecContext(ctx, tx, q, uc); err != nil {
			return err
		}
		return course.IncrementPurchases(ctx, tx, uc.CourseID)
	})

	switch {
	case err == nil:
		return true, nil
	case database.IsUniqueViolation(err):
		return false, nil
	case database.IsForeignKeyViolation(err):
		return false, fmt.Errorf("granting course[%s] to user[%s]: %w", uc.CourseID, uc.UserID, ErrUnknownReference)
	default:
		return false, fmt.Errorf("granting course[%s] to user[%s]: %w", uc.CourseID, uc.UserID, err)
	}
}

func Exists(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_courses WHERE user_id = $1 AND course_id = $2)`

	var ok bool
	if err := sqlx.GetContext(ctx, db, &ok, q, userID, courseID); err != nil {
		return false, fmt.Errorf("checking entitlement of user[%s] to course[%s]: %w", userID, courseID, err)
	}
	return ok, nil
}

func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string) ([]UserCourse, error) {
	const q = `
	SELECT user_id, course_id, created_at
	FROM user_courses
	WHERE user_id = $1
	ORDER BY created_at DESC`

	ucs := []UserCourse{}
	if err := sqlx.SelectContext(ctx, db, &ucs, q, userID); err != nil {
		return nil, fmt.Errorf("selecting entitlements of user[%s]: %w", userID, err)
	}
	return ucs, nil
}
