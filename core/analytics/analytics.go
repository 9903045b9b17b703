// Package analytics stores client events and aggregates store metrics for the
// admin dashboard.
package analytics

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Event struct {
	ID         string         `json:"id" db:"event_id"`
	UserID     *string        `json:"userId,omitempty" db:"user_id"`
	Name       string         `json:"event" db:"event_name"`
	Properties types.JSONText `json:"properties" db:"properties"`
	UserAgent  string         `json:"-" db:"user_agent"`
	IPAddress  string         `json:"-" db:"ip_address"`
	CreatedAt  time.Time      `json:"timestamp" db:"created_at"`
}

type EventNew struct {
	Event      string         `json:"event" validate:"required,max=100"`
	Properties map[string]any `json:"properties"`
	Timestamp  *time.Time     `json:"timestamp"`
}

const DefaultPeriod = "30d"

// Since returns the start of the reporting period ending at now. Unknown
// periods fall back to DefaultPeriod.
func Since(period string, now time.Time) (string, time.Time) {
	switch period {
	case "7d":
		return period, now.AddDate(0, 0, -7)
	case "90d":
		return period, now.AddDate(0, 0, -90)
	case "1y":
		return period, now.AddDate(-1, 0, 0)
	default:
		return DefaultPeriod, now.AddDate(0, 0, -30)
	}
}

// Totals are counted over the whole store, except where they name the period.
type Totals struct {
	TotalUsers     int   `json:"totalUsers" db:"total_users"`
	TotalCourses   int   `json:"totalCourses" db:"total_courses"`
	TotalPurchases int   `json:"totalPurchases" db:"total_purchases"`
	NewUsers       int   `json:"newUsers" db:"new_users"`
	TotalRevenue   int64 `json:"totalRevenue" db:"total_revenue"`
}

type CourseSales struct {
	ID      string `json:"id" db:"course_id"`
	Title   string `json:"title" db:"title"`
	Sales   int    `json:"sales" db:"sales"`
	Revenue int64  `json:"revenue" db:"revenue"`
}

type Day struct {
	Date      string `json:"date" db:"date"`
	NewUsers  int    `json:"newUsers" db:"new_users"`
	Purchases int    `json:"purchases" db:"purchases"`
}

type Overview struct {
	Totals
	TopCourses   []CourseSales `json:"topCourses"`
	DailyMetrics []Day         `json:"dailyMetrics"`
}

type Report struct {
	Overview  Overview  `json:"overview"`
	Period    string    `json:"period"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}
