// Package dbtest starts a throwaway Postgres container for store tests.
package dbtest

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/irsalhamdi/course-storefront/config"
	"github.com/irsalhamdi/course-storefront/database"
	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
)

// New returns a migrated database. The test is skipped when no docker daemon
// is reachable.
func New(t *testing.T) *sqlx.DB {
	t.Helper()

	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	if err := pool.Client.Ping(); err != nil {
		t.Skipf("docker unavailable: %v", err)
	}
	pool.MaxWait = time.Minute

	cfg := config.DB{
		User:         "postgres",
		Password:     "postgres",
		Name:         "storefront",
		MaxIdleConns: 2,
		MaxOpenConns: 10,
		DisableTLS:   true,
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "postgres",
		Tag:        "15-alpine",
		Env: []string{
			"POSTGRES_USER=" + cfg.User,
			"POSTGRES_PASSWORD=" + cfg.Password,
			"POSTGRES_DB=" + cfg.Name,
		},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("starting postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := pool.Purge(resource); err != nil {
			t.Logf("purging postgres container: %v", err)
		}
	})
	_ = resource.Expire(300)

	cfg.Host = resource.GetHostPort("5432/tcp")

	var db *sqlx.DB
	err = pool.Retry(func() error {
		d, err := database.Open(cfg)
		if err != nil {
			return err
		}
		if err := d.Ping(); err != nil {
			d.Close()
			return err
		}
		db = d
		return nil
	})
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := database.Migrate(database.URL(cfg)); err != nil {
		t.Fatalf("migrating: %v", err)
	}

	return db
}

// Seq returns a unique string for fixture data.
func Seq(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, atomic.AddInt64(&seq, 1))
}

var seq int64
