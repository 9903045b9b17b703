package course

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
)

const columns = `
	course_id, title, subtitle, description, price, discount_price, category_id,
	tag, community_link, thumbnail_url, is_active, view_count, purchase_count,
	created_at, updated_at`

func Create(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	INSERT INTO courses
		(course_id, title, subtitle, description, price, discount_price, category_id,
		 tag, community_link, thumbnail_url, is_active, view_count, purchase_count,
		 created_at, updated_at)
	VALUES
		(:course_id, :title, :subtitle, :description, :price, :discount_price, :category_id,
		 :tag, :community_link, :thumbnail_url, :is_active, :view_count, :purchase_count,
		 :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		return fmt.Errorf("inserting course: %w", err)
	}
	return nil
}

func Update(ctx context.Context, db sqlx.ExtContext, c Course) error {
	const q = `
	UPDATE courses SET
		title = :title,
		subtitle = :subtitle,
		description = :description,
		price = :price,
		discount_price = :discount_price,
		category_id = :category_id,
		tag = :tag,
		community_link = :community_link,
		thumbnail_url = :thumbnail_url,
		updated_at = :updated_at
	WHERE course_id = :course_id`

	res, err := sqlx.NamedExecContext(ctx, db, q, c)
	if err != nil {
		return fmt.Errorf("updating course[%s]: %w", c.ID, err)
	}
	return affected(res, c.ID)
}

func SetActive(ctx context.Context, db sqlx.ExtContext, id string, active bool) error {
	const q = `UPDATE courses SET is_active = $2, updated_at = now() WHERE course_id = $1`

	res, err := db.ExecContext(ctx, q, id, active)
	if err != nil {
		return fmt.Errorf("toggling course[%s]: %w", id, err)
	}
	return affected(res, id)
}

func Delete(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `DELETE FROM courses WHERE course_id = $1`

	res, err := db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("deleting course[%s]: %w", id, err)
	}
	return affected(res, id)
}

// Fetch returns the course regardless of its active flag.
func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	q := `SELECT` + columns + ` FROM courses WHERE course_id = $1`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting course[%s]: %w", id, database.NotFound(err))
	}
	return c, nil
}

func FetchActive(ctx context.Context, db sqlx.ExtContext, id string) (Course, error) {
	q := `SELECT` + columns + ` FROM courses WHERE course_id = $1 AND is_active = TRUE`

	var c Course
	if err := sqlx.GetContext(ctx, db, &c, q, id); err != nil {
		return Course{}, fmt.Errorf("selecting active course[%s]: %w", id, database.NotFound(err))
	}
	return c, nil
}

// Search returns one page of matching courses and the total number of matches.
func Search(ctx context.Context, db sqlx.ExtContext, f Filter) ([]Course, int, error) {
	where, args := f.where()

	var total int
	if err := sqlx.GetContext(ctx, db, &total, `SELECT count(*) FROM courses `+where, args...); err != nil {
		return nil, 0, fmt.Errorf("counting courses: %w", err)
	}

	q := fmt.Sprintf(`SELECT %s FROM courses %s ORDER BY %s LIMIT %d OFFSET %d`,
		columns, where, f.order(), f.Limit, f.Offset())

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, args...); err != nil {
		return nil, 0, fmt.Errorf("selecting courses: %w", err)
	}
	return courses, total, nil
}

// ListOwned returns the courses the user holds an entitlement for, most
// recently granted first.
func ListOwned(ctx context.Context, db sqlx.ExtContext, userID string) ([]Course, error) {
	const q = `
	SELECT
		c.course_id, c.title, c.subtitle, c.description, c.price, c.discount_price,
		c.category_id, c.tag, c.community_link, c.thumbnail_url, c.is_active,
		c.view_count, c.purchase_count, c.created_at, c.updated_at
	FROM courses c
	JOIN user_courses uc ON uc.course_id = c.course_id
	WHERE uc.user_id = $1
	ORDER BY uc.created_at DESC`

	courses := []Course{}
	if err := sqlx.SelectContext(ctx, db, &courses, q, userID); err != nil {
		return nil, fmt.Errorf("selecting courses owned by user[%s]: %w", userID, err)
	}
	return courses, nil
}

func IncrementViews(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `UPDATE courses SET view_count = view_count + 1 WHERE course_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("incrementing views of course[%s]: %w", id, err)
	}
	return nil
}

func IncrementPurchases(ctx context.Context, db sqlx.ExtContext, id string) error {
	const q = `UPDATE courses SET purchase_count = purchase_count + 1 WHERE course_id = $1`

	if _, err := db.ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("incrementing purchases of course[%s]: %w", id, err)
	}
	return nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func affected(res rowsAffecter, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("course[%s]: %w", id, database.ErrNotFound)
	}
	return nil
}

// Catalog exposes the read side of the store to callers that take an
// interface.
type Catalog struct {
	DB sqlx.ExtContext
}

func (c Catalog) FetchActive(ctx context.Context, id string) (Course, error) {
	return FetchActive(ctx, c.DB, id)
}
