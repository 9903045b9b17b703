// Package progress tracks how far a learner got through the courses they own.
package progress

import "time"

type Progress struct {
	CourseID     string     `json:"courseId" db:"course_id"`
	CourseTitle  string     `json:"courseTitle" db:"title"`
	Percentage   int        `json:"progressPercentage" db:"progress_percentage"`
	LastAccessed time.Time  `json:"lastAccessed" db:"last_accessed"`
	CompletedAt  *time.Time `json:"completedAt,omitempty" db:"completed_at"`
}

type ProgressUp struct {
	CourseID   string `json:"courseId" validate:"required,uuid"`
	Percentage *int   `json:"progressPercentage" validate:"required"`
	Completed  bool   `json:"completed"`
}

type Updated struct {
	Success   bool `json:"success"`
	Progress  int  `json:"progress"`
	Completed bool `json:"completed"`
}

// Clamp bounds a reported percentage to [0, 100].
func Clamp(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
