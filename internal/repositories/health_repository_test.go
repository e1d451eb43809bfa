package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/templatemart/api/internal/domain"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestDependencyHealthRepositoryCollectSuccess(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name: "firestore",
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(10 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{Name: "storage", Check: func(context.Context) error { return nil }},
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks, WithDependencyClock(func() time.Time { return now }))
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected status ok, got %s", report.Status)
	}
	if len(report.Checks) != 2 {
		t.Fatalf("expected 2 checks, got %d", len(report.Checks))
	}
	for name, check := range report.Checks {
		if check.Status != domain.HealthStatusOK || !check.CheckedAt.Equal(now) {
			t.Fatalf("unexpected check %s: %+v", name, check)
		}
	}
}

func TestDependencyHealthRepositoryCollectFailure(t *testing.T) {
	checks := []DependencyCheck{
		{Name: "firestore", Check: func(context.Context) error { return errors.New("boom") }},
		{Name: "pubsub", Check: func(context.Context) error { return nil }},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("expected status degraded, got %s", report.Status)
	}
	if check := report.Checks["firestore"]; check.Status != domain.HealthStatusDegraded || check.Detail != "boom" {
		t.Fatalf("unexpected firestore check %+v", check)
	}
	if report.Checks["pubsub"].Status != domain.HealthStatusOK {
		t.Fatalf("expected pubsub ok")
	}
}

func TestDependencyHealthRepositoryCollectTimeout(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:    "secrets",
			Timeout: 5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(time.Second):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{Name: "storage", Check: func(context.Context) error { return errors.New("slow") }},
	}
	repo, err := NewDependencyHealthRepository(checks)
	if err != nil {
		t.Fatalf("NewDependencyHealthRepository: %v", err)
	}

	report, err := repo.Collect(context.Background())
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected status error, got %s", report.Status)
	}
	if check := report.Checks["secrets"]; check.Detail != "timeout" {
		t.Fatalf("expected detail timeout, got %s", check.Detail)
	}
}

func TestNewDependencyHealthRepositoryValidates(t *testing.T) {
	if _, err := NewDependencyHealthRepository(nil); err == nil {
		t.Fatal("expected error for empty checks")
	}
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "x"}}); err == nil {
		t.Fatal("expected error for missing func")
	}
	ok := func(context.Context) error { return nil }
	if _, err := NewDependencyHealthRepository([]DependencyCheck{{Name: "x", Check: ok}, {Name: "x", Check: ok}}); err == nil {
		t.Fatal("expected error for duplicate names")
	}
}

func TestRepositoryErrorHelpers(t *testing.T) {
	err := NotFound("templates.get", "template %s", "t1")
	if !IsNotFound(err) || IsConflict(err) || IsUnavailable(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if err.Error() != "templates.get: template t1 not found" {
		t.Fatalf("unexpected message %q", err.Error())
	}
	if !IsConflict(Conflict("categories.delete", "category %s in use", "c1")) {
		t.Fatal("expected conflict")
	}
	if IsNotFound(errors.New("plain")) {
		t.Fatal("plain errors carry no classification")
	}
}
