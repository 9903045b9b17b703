// Package dashboard builds a learner's own view of their courses and
// activity from the course, progress and analytics stores.
package dashboard

import (
	"sort"
	"time"

	"github.com/irsalhamdi/course-storefront/core/analytics"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/progress"
)

const (
	recentWindow   = 7 * 24 * time.Hour
	recentLimit    = 5
	topActivities  = 5
	timelineLength = 20
)

type Owner struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// CourseProgress is the progress of one owned course. Courses never opened
// report zero.
type CourseProgress struct {
	Percentage   int        `json:"progressPercentage"`
	LastAccessed *time.Time `json:"lastAccessed"`
	CompletedAt  *time.Time `json:"completedAt"`
}

type OwnedCourse struct {
	Course   course.Course  `json:"course"`
	Progress CourseProgress `json:"progress"`
}

type Dashboard struct {
	User           Owner         `json:"user"`
	Courses        []OwnedCourse `json:"courses"`
	RecentActivity []OwnedCourse `json:"recentActivity"`
}

// Build joins owned courses with their progress. RecentActivity holds the
// courses opened within the last week, most recent first.
func Build(owner Owner, owned []course.Course, ps []progress.Progress, now time.Time) Dashboard {
	byCourse := make(map[string]progress.Progress, len(ps))
	for _, p := range ps {
		byCourse[p.CourseID] = p
	}

	d := Dashboard{User: owner, Courses: []OwnedCourse{}, RecentActivity: []OwnedCourse{}}
	for _, c := range owned {
		oc := OwnedCourse{Course: c}
		if p, ok := byCourse[c.ID]; ok {
			last := p.LastAccessed
			oc.Progress = CourseProgress{Percentage: p.Percentage, LastAccessed: &last, CompletedAt: p.CompletedAt}
		}
		d.Courses = append(d.Courses, oc)

		if oc.Progress.LastAccessed != nil && !oc.Progress.LastAccessed.Before(now.Add(-recentWindow)) {
			d.RecentActivity = append(d.RecentActivity, oc)
		}
	}

	sort.SliceStable(d.RecentActivity, func(i, j int) bool {
		return d.RecentActivity[i].Progress.LastAccessed.After(*d.RecentActivity[j].Progress.LastAccessed)
	})
	if len(d.RecentActivity) > recentLimit {
		d.RecentActivity = d.RecentActivity[:recentLimit]
	}
	return d
}

type ActivityCount struct {
	Event string `json:"event"`
	Count int    `json:"count"`
}

type Bucket struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type EventSummary struct {
	TotalEvents   int             `json:"totalEvents"`
	EventTypes    map[string]int  `json:"eventTypes"`
	TopActivities []ActivityCount `json:"topActivities"`
	Activity      []Bucket        `json:"activity"`
}

type ProgressSummary struct {
	TotalCourses     int                 `json:"totalCourses"`
	CompletedCourses int                 `json:"completedCourses"`
	AverageProgress  int                 `json:"averageProgress"`
	ProgressByCourse []progress.Progress `json:"progressByCourse"`
}

type Report struct {
	Period           string            `json:"period"`
	StartDate        time.Time         `json:"startDate"`
	EndDate          time.Time         `json:"endDate"`
	Events           EventSummary      `json:"events"`
	Progress         ProgressSummary   `json:"progress"`
	ActivityTimeline []analytics.Event `json:"activityTimeline"`
}

// bucketKey groups by day for short periods, by week (starting Sunday) for
// 90d and by month for 1y. All keys are UTC.
func bucketKey(period string, t time.Time) string {
	t = t.UTC()
	switch period {
	case "1y":
		return t.Format("2006-01")
	case "90d":
		return t.AddDate(0, 0, -int(t.Weekday())).Format("2006-01-02")
	}
	return t.Format("2006-01-02")
}

// SummarizeEvents expects evs newest first, as analytics.ListByUser returns
// them.
func SummarizeEvents(period string, evs []analytics.Event) EventSummary {
	s := EventSummary{
		TotalEvents:   len(evs),
		EventTypes:    map[string]int{},
		TopActivities: []ActivityCount{},
		Activity:      []Bucket{},
	}

	buckets := map[string]int{}
	for _, ev := range evs {
		s.EventTypes[ev.Name]++
		buckets[bucketKey(period, ev.CreatedAt)]++
	}

	for name, n := range s.EventTypes {
		s.TopActivities = append(s.TopActivities, ActivityCount{Event: name, Count: n})
	}
	sort.Slice(s.TopActivities, func(i, j int) bool {
		a, b := s.TopActivities[i], s.TopActivities[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Event < b.Event
	})
	if len(s.TopActivities) > topActivities {
		s.TopActivities = s.TopActivities[:topActivities]
	}

	for date, n := range buckets {
		s.Activity = append(s.Activity, Bucket{Date: date, Count: n})
	}
	sort.Slice(s.Activity, func(i, j int) bool { return s.Activity[i].Date < s.Activity[j].Date })

	return s
}

func SummarizeProgress(ps []progress.Progress) ProgressSummary {
	s := ProgressSummary{TotalCourses: len(ps), ProgressByCourse: ps}
	if s.ProgressByCourse == nil {
		s.ProgressByCourse = []progress.Progress{}
	}
	if len(ps) == 0 {
		return s
	}

	var total int
	for _, p := range ps {
		total += p.Percentage
		if p.CompletedAt != nil {
			s.CompletedCourses++
		}
	}
	s.AverageProgress = (total + len(ps)/2) / len(ps)
	return s
}

// Timeline is the most recent slice of evs.
func Timeline(evs []analytics.Event) []analytics.Event {
	if len(evs) > timelineLength {
		return evs[:timelineLength]
	}
	return evs
}
