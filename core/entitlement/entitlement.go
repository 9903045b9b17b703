// Package entitlement records which users may access which courses.
//
// A grant is written at most once per (user, course): both the client
// redirect and the gateway webhook converge here and the unique constraint on
// user_courses arbitrates between them. A duplicate insert is reported as
// success so either caller may win the race.
package entitlement

import (
	"errors"
	"fmt"
	"time"

	"github.com/irsalhamdi/course-storefront/validate"
)

// Grant sources.
const (
	SourceVerify  = "verify"
	SourceWebhook = "webhook"
)

var (
	ErrInvalid          = errors.New("invalid entitlement")
	ErrUnknownReference = errors.New("user or course does not exist")
)

type UserCourse struct {
	UserID    string    `json:"userId" db:"user_id"`
	CourseID  string    `json:"courseId" db:"course_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// New validates both identifiers.
func New(userID, courseID string, now time.Time) (UserCourse, error) {
	if err := validate.CheckID(userID); err != nil {
		return UserCourse{}, fmt.Errorf("%w: invalid user id", ErrInvalid)
	}
	if err := validate.CheckID(courseID); err != nil {
		return UserCourse{}, fmt.Errorf("%w: invalid course id", ErrInvalid)
	}
	return UserCourse{UserID: userID, CourseID: courseID, CreatedAt: now.UTC()}, nil
}

// Granted is published after a new entitlement row is written.
type Granted struct {
	UserID    string    `json:"user_id"`
	CourseID  string    `json:"course_id"`
	Source    string    `json:"source"`
	GrantedAt time.Time `json:"granted_at"`
}
