package progress

import (
	"context"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
)

// Save upserts the learner's progress. A course once completed stays
// completed.
func Save(ctx context.Context, db sqlx.ExtContext, userID, courseID string, pct int, completed bool, now time.Time) error {
	const q = `
	INSERT INTO user_course_progress
		(user_id, course_id, progress_percentage, last_accessed, completed_at)
	VALUES
		($1, $2, $3, $4, $5)
	ON CONFLICT (user_id, course_id) DO UPDATE SET
		progress_percentage = EXCLUDED.progress_percentage,
		last_accessed = EXCLUDED.last_accessed,
		completed_at = COALESCE(EXCLUDED.completed_at, user_course_progress.completed_at)`

	var completedAt *time.Time
	if completed {
		completedAt = &now
	}

	if _, err := db.ExecContext(ctx, q, userID, courseID, pct, now, completedAt); err != nil {
		return fmt.Errorf("saving progress[%s/%s]: %w", userID, courseID, err)
	}
	return nil
}

const selectProgress = `
	SELECT
		p.course_id, c.title, p.progress_percentage, p.last_accessed, p.completed_at
	FROM user_course_progress p
	JOIN courses c ON c.course_id = p.course_id
	WHERE p.user_id = $1`

func List(ctx context.Context, db sqlx.ExtContext, userID string) ([]Progress, error) {
	q := selectProgress + ` ORDER BY p.last_accessed DESC`

	ps := []Progress{}
	if err := sqlx.SelectContext(ctx, db, &ps, q, userID); err != nil {
		return nil, fmt.Errorf("selecting progress for user[%s]: %w", userID, err)
	}
	return ps, nil
}

// ListSince returns the progress rows touched since the given time.
func ListSince(ctx context.Context, db sqlx.ExtContext, userID string, since time.Time) ([]Progress, error) {
	q := selectProgress + ` AND p.last_accessed >= $2 ORDER BY p.last_accessed DESC`

	ps := []Progress{}
	if err := sqlx.SelectContext(ctx, db, &ps, q, userID, since); err != nil {
		return nil, fmt.Errorf("selecting progress for user[%s] since %s: %w", userID, since.Format(time.RFC3339), err)
	}
	return ps, nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, userID, courseID string) (Progress, error) {
	q := selectProgress + ` AND p.course_id = $2`

	var p Progress
	if err := sqlx.GetContext(ctx, db, &p, q, userID, courseID); err != nil {
		return Progress{}, fmt.Errorf("selecting progress[%s/%s]: %w", userID, courseID, database.NotFound(err))
	}
	return p, nil
}
