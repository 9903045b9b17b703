package entitlement

import (
	"context"
	"encoding/json"
	"time"

	"github.com/irsalhamdi/course-storefront/api/background"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Publisher delivers grant notifications, e.g. to send the community invite.
type Publisher interface {
	Publish(ctx context.Context, key string, value []byte) error
}

const publishTimeout = 10 * time.Second

// Service is the single write path for entitlements.
type Service struct {
	db  *sqlx.DB
	pub Publisher
	bg  *background.Background
	log logrus.FieldLogger
	now func() time.Time
}

func NewService(db *sqlx.DB, pub Publisher, bg *background.Background, log logrus.FieldLogger) *Service {
	return &Service{db: db, pub: pub, bg: bg, log: log, now: time.Now}
}

// Grant idempotently gives userID access to courseID. Publishing the grant
// happens in the background and never fails the caller.
func (s *Service) Grant(ctx context.Context, userID, courseID, source string) error {
	uc, err := New(userID, courseID, s.now())
	if err != nil {
		return err
	}

	created, err := Insert(ctx, s.db, uc)
	if err != nil {
		return err
	}

	log := s.log.WithFields(logrus.Fields{
		"user_id":   userID,
		"course_id": courseID,
		"source":    source,
	})
	if !created {
		log.Info("entitlement already granted")
		return nil
	}
	log.Info("entitlement granted")

	if s.pub == nil {
		return nil
	}

	ev := Granted{UserID: userID, CourseID: courseID, Source: source, GrantedAt: uc.CreatedAt}
	s.bg.Run(func() {
		b, err := json.Marshal(ev)
		if err != nil {
			log.Errorf("encoding grant event: %v", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		if err := s.pub.Publish(ctx, userID, b); err != nil {
			log.Errorf("publishing grant event: %v", err)
		}
	})
	return nil
}
