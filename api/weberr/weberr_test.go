package weberr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestResponseSurvivesWrapping(t *testing.T) {
	base := errors.New("course[42] not found")
	err := fmt.Errorf("fetching course: %w", NotFound(base))

	body, status, ok := Response(err)
	if !ok {
		t.Fatal("expected a response error")
	}
	if status != http.StatusNotFound {
		t.Fatalf("expected status %d, got %d", http.StatusNotFound, status)
	}
	if diff := cmp.Diff(&ErrorResponse{"the resource could not be found"}, body); diff != "" {
		t.Fatalf("unexpected body (-want +got):\n%s", diff)
	}
	if !errors.Is(err, base) {
		t.Fatal("expected the original error to be reachable")
	}
}

func TestFields(t *testing.T) {
	err := InvalidInput(errors.New("missing parameters"), WithFields(map[string]any{"course_id": "c1"}))

	fields, ok := Fields(err)
	if !ok {
		t.Fatal("expected fields")
	}
	if fields["course_id"] != "c1" {
		t.Fatalf("unexpected fields: %v", fields)
	}

	body, status, _ := Response(err)
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", status)
	}
	if body.(*ErrorResponse).Error != "missing parameters" {
		t.Fatalf("unexpected message %q", body.(*ErrorResponse).Error)
	}
}

func TestFieldsMergeAcrossLayers(t *testing.T) {
	inner := WithFields(map[string]any{"order_id": "order_1", "source": "inner"})(errors.New("gateway timeout"))
	err := fmt.Errorf("verifying: %w", BadGateway(inner, WithFields(map[string]any{"source": "outer"})))

	fields, ok := Fields(err)
	if !ok {
		t.Fatal("expected fields")
	}
	want := map[string]any{"order_id": "order_1", "source": "outer"}
	if diff := cmp.Diff(want, fields); diff != "" {
		t.Fatalf("unexpected fields (-want +got):\n%s", diff)
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Conflict(errors.New("email already subscribed")), http.StatusConflict},
		{Forbidden(errors.New("not an admin")), http.StatusForbidden},
		{fmt.Errorf("outer: %w", Misconfigured(errors.New("razorpay keys not configured"))), http.StatusInternalServerError},
		{BadGateway(errors.New("dial tcp: timeout")), http.StatusBadGateway},
		{errors.New("plain"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		if got := Status(tc.err); got != tc.want {
			t.Errorf("Status(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
