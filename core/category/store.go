package category

import (
	"context"
	"fmt"

	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, c Category) error {
	const q = `
	INSERT INTO course_categories
		(category_id, name, slug, description, parent_id, sort_order, is_active, created_at)
	VALUES
		(:category_id, :name, :slug, :description, :parent_id, :sort_order, :is_active, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, c); err != nil {
		if database.IsUniqueViolation(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("inserting category: %w", err)
	}
	return nil
}

// ListActive returns active categories by sort order, each with the number of
// active courses filed under it.
func ListActive(ctx context.Context, db sqlx.ExtContext) ([]Category, error) {
	const q = `
	SELECT
		cc.category_id, cc.name, cc.slug, cc.description, cc.parent_id,
		cc.sort_order, cc.is_active, cc.created_at,
		count(c.course_id) AS course_count
	FROM course_categories cc
	LEFT JOIN courses c ON c.category_id = cc.category_id AND c.is_active = TRUE
	WHERE cc.is_active = TRUE
	GROUP BY cc.category_id
	ORDER BY cc.sort_order, cc.name`

	cats := []Category{}
	if err := sqlx.SelectContext(ctx, db, &cats, q); err != nil {
		return nil, fmt.Errorf("selecting categories: %w", err)
	}
	return cats, nil
}
