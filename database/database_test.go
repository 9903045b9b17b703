package database

import (
	"errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/irsalhamdi/course-storefront/config"
	"github.com/lib/pq"
)

func TestURL(t *testing.T) {
	u, err := url.Parse(URL(config.DB{
		User:       "app",
		Password:   "p@ss",
		Host:       "db:5432",
		Name:       "storefront",
		DisableTLS: true,
	}))
	if err != nil {
		t.Fatal(err)
	}

	if u.Host != "db:5432" || u.Path != "/storefront" {
		t.Fatalf("unexpected url %s", u)
	}
	if pw, _ := u.User.Password(); pw != "p@ss" {
		t.Fatalf("password not preserved: %q", pw)
	}
	if u.Query().Get("sslmode") != "disable" {
		t.Fatalf("expected sslmode=disable, got %q", u.Query().Get("sslmode"))
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := fmt.Errorf("inserting: %w", &pq.Error{Code: "23505"})
	if !IsUniqueViolation(dup) {
		t.Fatal("expected wrapped 23505 to be a unique violation")
	}
	if IsUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("foreign key violation is not a unique violation")
	}
	if IsUniqueViolation(errors.New("23505")) {
		t.Fatal("plain errors are never unique violations")
	}
	if !IsForeignKeyViolation(&pq.Error{Code: "23503"}) {
		t.Fatal("expected 23503 to be a foreign key violation")
	}
}
