package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-storefront/validate"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

const topCoursesLimit = 10

// effectivePrice mirrors course.Course.EffectivePrice.
const effectivePrice = `
	CASE WHEN c.discount_price IS NOT NULL AND c.discount_price < c.price
		THEN c.discount_price ELSE c.price END`

func Record(ctx context.Context, db sqlx.ExtContext, ev Event) error {
	const q = `
	INSERT INTO analytics_events
		(event_id, user_id, event_name, properties, user_agent, ip_address, created_at)
	VALUES
		(:event_id, :user_id, :event_name, :properties, :user_agent, :ip_address, :created_at)`

	if len(ev.Properties) == 0 {
		ev.Properties = types.JSONText("{}")
	}

	if _, err := sqlx.NamedExecContext(ctx, db, q, ev); err != nil {
		return fmt.Errorf("inserting analytics event[%s]: %w", ev.Name, err)
	}
	return nil
}

// Track records a server side event on behalf of a user.
func Track(ctx context.Context, db sqlx.ExtContext, userID, name string, props map[string]any) error {
	b, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encoding event properties: %w", err)
	}

	return Record(ctx, db, Event{
		ID:         validate.GenerateID(),
		UserID:     &userID,
		Name:       name,
		Properties: types.JSONText(b),
		CreatedAt:  time.Now().UTC(),
	})
}

// ListByUser returns the user's events since the given time, newest first.
func ListByUser(ctx context.Context, db sqlx.ExtContext, userID string, since time.Time) ([]Event, error) {
	const q = `
	SELECT
		event_id, user_id, event_name, properties, user_agent, ip_address, created_at
	FROM analytics_events
	WHERE user_id = $1 AND created_at >= $2
	ORDER BY created_at DESC`

	evs := []Event{}
	if err := sqlx.SelectContext(ctx, db, &evs, q, userID, since); err != nil {
		return nil, fmt.Errorf("selecting events for user[%s]: %w", userID, err)
	}
	return evs, nil
}

func QueryTotals(ctx context.Context, db sqlx.ExtContext, since time.Time) (Totals, error) {
	q := `
	SELECT
		(SELECT count(*) FROM users) AS total_users,
		(SELECT count(*) FROM courses WHERE is_active = TRUE) AS total_courses,
		(SELECT count(*) FROM user_courses WHERE created_at >= $1) AS total_purchases,
		(SELECT count(*) FROM users WHERE created_at >= $1) AS new_users,
		(SELECT COALESCE(sum(` + effectivePrice + `), 0)
			FROM user_courses uc JOIN courses c ON c.course_id = uc.course_id
			WHERE uc.created_at >= $1) AS total_revenue`

	var t Totals
	if err := sqlx.GetContext(ctx, db, &t, q, since); err != nil {
		return Totals{}, fmt.Errorf("selecting totals: %w", err)
	}
	return t, nil
}

func QueryTopCourses(ctx context.Context, db sqlx.ExtContext, since time.Time, limit int) ([]CourseSales, error) {
	q := `
	SELECT
		c.course_id, c.title,
		count(*) AS sales,
		sum(` + effectivePrice + `) AS revenue
	FROM user_courses uc
	JOIN courses c ON c.course_id = uc.course_id
	WHERE uc.created_at >= $1
	GROUP BY c.course_id, c.title
	ORDER BY revenue DESC, sales DESC, c.title
	LIMIT $2`

	sales := []CourseSales{}
	if err := sqlx.SelectContext(ctx, db, &sales, q, since, limit); err != nil {
		return nil, fmt.Errorf("selecting top courses: %w", err)
	}
	return sales, nil
}

// QueryDaily returns one row per UTC day in [since, until], including days
// without activity.
func QueryDaily(ctx context.Context, db sqlx.ExtContext, since, until time.Time) ([]Day, error) {
	const q = `
	WITH days AS (
		SELECT g.day AT TIME ZONE 'UTC' AS start
		FROM generate_series(
			date_trunc('day', $1::timestamptz AT TIME ZONE 'UTC'),
			date_trunc('day', $2::timestamptz AT TIME ZONE 'UTC'),
			interval '1 day') AS g(day)
	)
	SELECT
		to_char(d.start AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS date,
		(SELECT count(*) FROM users u
			WHERE u.created_at >= d.start AND u.created_at < d.start + interval '1 day') AS new_users,
		(SELECT count(*) FROM user_courses uc
			WHERE uc.created_at >= d.start AND uc.created_at < d.start + interval '1 day') AS purchases
	FROM days d
	ORDER BY d.start`

	days := []Day{}
	if err := sqlx.SelectContext(ctx, db, &days, q, since, until); err != nil {
		return nil, fmt.Errorf("selecting daily metrics: %w", err)
	}
	return days, nil
}

func QueryOverview(ctx context.Context, db sqlx.ExtContext, since, until time.Time) (Overview, error) {
	totals, err := QueryTotals(ctx, db, since)
	if err != nil {
		return Overview{}, err
	}

	top, err := QueryTopCourses(ctx, db, since, topCoursesLimit)
	if err != nil {
		return Overview{}, err
	}

	daily, err := QueryDaily(ctx, db, since, until)
	if err != nil {
		return Overview{}, err
	}

	return Overview{Totals: totals, TopCourses: top, DailyMetrics: daily}, nil
}
