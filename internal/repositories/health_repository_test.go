package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/memorial-heritage/api/internal/domain"
)

func TestDependencyHealthRepositoryCollectSuccess(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:     "firestore",
			Critical: true,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(10 * time.Millisecond):
					return nil
				case <-ctx.Done():
					return ctx.Err()
				}
			},
		},
		{
			Name:  "storage",
			Check: func(context.Context) error { return nil },
		},
	}

	now := time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC)
	repo, err := NewDependencyHealthRepository(checks,
		WithDependencyClock(func() time.Time { return now }),
	)
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
		if check.Status != domain.HealthStatusOK {
			t.Fatalf("expected check %s to be ok, got %s", name, check.Status)
		}
		if check.CheckedAt != now {
			t.Fatalf("expected check %s checkedAt %s, got %s", name, now, check.CheckedAt)
		}
	}
	if report.GeneratedAt != now {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestDependencyHealthRepositoryNonCriticalFailureDegrades(t *testing.T) {
	expectedErr := errors.New("bucket unreachable")
	checks := []DependencyCheck{
		{Name: "storage", Check: func(context.Context) error { return expectedErr }},
		{Name: "firestore", Critical: true, Check: func(context.Context) error { return nil }},
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
	check := report.Checks["storage"]
	if check.Status != domain.HealthStatusDegraded || check.Error != expectedErr.Error() {
		t.Fatalf("unexpected storage check %+v", check)
	}
}

func TestDependencyHealthRepositoryCriticalTimeout(t *testing.T) {
	checks := []DependencyCheck{
		{
			Name:     "firestore",
			Critical: true,
			Timeout:  5 * time.Millisecond,
			Check: func(ctx context.Context) error {
				select {
				case <-time.After(200 * time.Millisecond):
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
	check := report.Checks["firestore"]
	if check.Status != domain.HealthStatusError || check.Detail != "timeout" {
		t.Fatalf("unexpected firestore check %+v", check)
	}
}

func TestNewDependencyHealthRepositoryValidates(t *testing.T) {
	cases := [][]DependencyCheck{
		nil,
		{{Name: " ", Check: func(context.Context) error { return nil }}},
		{{Name: "firestore"}},
		{
			{Name: "firestore", Check: func(context.Context) error { return nil }},
			{Name: "firestore", Check: func(context.Context) error { return nil }},
		},
	}
	for i, checks := range cases {
		if _, err := NewDependencyHealthRepository(checks); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestIsNotFound(t *testing.T) {
	err := NewNotFound("page", "about")
	if !IsNotFound(err) || IsUnavailable(err) {
		t.Fatalf("unexpected classification for %v", err)
	}
	if IsNotFound(errors.New("other")) {
		t.Fatalf("plain errors are not not-found")
	}
}
