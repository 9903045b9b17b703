package dashboard

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/irsalhamdi/course-storefront/core/analytics"
	"github.com/irsalhamdi/course-storefront/core/course"
	"github.com/irsalhamdi/course-storefront/core/progress"
)

func TestBuild(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)
	done := now.Add(-time.Hour)

	owned := []course.Course{
		{ID: "canva", Title: "Canva"},
		{ID: "meta", Title: "Meta Ads"},
		{ID: "seo", Title: "SEO"},
	}
	ps := []progress.Progress{
		{CourseID: "canva", Percentage: 100, LastAccessed: now.Add(-2 * time.Hour), CompletedAt: &done},
		{CourseID: "meta", Percentage: 30, LastAccessed: now.Add(-10 * 24 * time.Hour)},
		{CourseID: "unowned", Percentage: 80, LastAccessed: now},
	}

	d := Build(Owner{ID: "u1", Email: "learner@example.com"}, owned, ps, now)

	if len(d.Courses) != 3 {
		t.Fatalf("expected every owned course, got %d", len(d.Courses))
	}
	if seo := d.Courses[2].Progress; seo.Percentage != 0 || seo.LastAccessed != nil || seo.CompletedAt != nil {
		t.Fatalf("an unopened course should report zero progress, got %+v", seo)
	}
	if got := d.Courses[0].Progress; got.Percentage != 100 || got.CompletedAt == nil {
		t.Fatalf("unexpected canva progress %+v", got)
	}

	if len(d.RecentActivity) != 1 || d.RecentActivity[0].Course.ID != "canva" {
		t.Fatalf("only courses opened within a week are recent, got %+v", d.RecentActivity)
	}
}

func TestBuildRecentActivityLimit(t *testing.T) {
	now := time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

	var owned []course.Course
	var ps []progress.Progress
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		owned = append(owned, course.Course{ID: id})
		ps = append(ps, progress.Progress{CourseID: id, LastAccessed: now.Add(-time.Duration(i) * time.Hour)})
	}

	d := Build(Owner{ID: "u1"}, owned, ps, now)

	var got []string
	for _, oc := range d.RecentActivity {
		got = append(got, oc.Course.ID)
	}
	if diff := cmp.Diff([]string{"a", "b", "c", "d", "e"}, got); diff != "" {
		t.Fatalf("unexpected recent activity (-want +got):\n%s", diff)
	}
}

func TestBuildEmpty(t *testing.T) {
	d := Build(Owner{ID: "u1"}, nil, nil, time.Now())
	if d.Courses == nil || d.RecentActivity == nil {
		t.Fatal("empty dashboards should render empty lists, not null")
	}
}

func TestBucketKey(t *testing.T) {
	// Wednesday.
	at := time.Date(2024, 3, 20, 23, 30, 0, 0, time.UTC)

	tests := map[string]string{
		"7d":  "2024-03-20",
		"30d": "2024-03-20",
		"90d": "2024-03-17",
		"1y":  "2024-03",
	}
	for period, want := range tests {
		if got := bucketKey(period, at); got != want {
			t.Errorf("bucketKey(%s) = %s, want %s", period, got, want)
		}
	}
}

func TestSummarizeEvents(t *testing.T) {
	day := time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)
	evs := []analytics.Event{
		{Name: "progress_updated", CreatedAt: day},
		{Name: "page_view", CreatedAt: day},
		{Name: "progress_updated", CreatedAt: day.AddDate(0, 0, -1)},
	}

	got := SummarizeEvents("7d", evs)
	want := EventSummary{
		TotalEvents:   3,
		EventTypes:    map[string]int{"progress_updated": 2, "page_view": 1},
		TopActivities: []ActivityCount{{"progress_updated", 2}, {"page_view", 1}},
		Activity:      []Bucket{{"2024-03-19", 1}, {"2024-03-20", 2}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected summary (-want +got):\n%s", diff)
	}
}

func TestSummarizeProgress(t *testing.T) {
	done := time.Now()
	got := SummarizeProgress([]progress.Progress{
		{CourseID: "a", Percentage: 100, CompletedAt: &done},
		{CourseID: "b", Percentage: 25},
	})
	if got.TotalCourses != 2 || got.CompletedCourses != 1 || got.AverageProgress != 63 {
		t.Fatalf("unexpected summary %+v", got)
	}

	if empty := SummarizeProgress(nil); empty.AverageProgress != 0 || empty.ProgressByCourse == nil {
		t.Fatalf("unexpected empty summary %+v", empty)
	}
}

func TestTimeline(t *testing.T) {
	evs := make([]analytics.Event, 30)
	if got := len(Timeline(evs)); got != timelineLength {
		t.Fatalf("expected %d entries, got %d", timelineLength, got)
	}
	if got := len(Timeline(evs[:3])); got != 3 {
		t.Fatalf("expected 3 entries, got %d", got)
	}
}
