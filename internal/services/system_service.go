package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/templatemart/api/internal/domain"
	"github.com/templatemart/api/internal/repositories"
)

// BuildInfo is the release metadata stamped onto health reports.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	// Datastore names the repository backend, "firestore" or "memory".
	Datastore string
	StartedAt time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	Clock            func() time.Time
	Build            BuildInfo
	// Optional lists checks whose failure only degrades readiness. Event publishing is
	// best-effort, so the Pub/Sub check usually belongs here.
	Optional []string
}

type systemService struct {
	checks   repositories.HealthRepository
	clock    func() time.Time
	build    BuildInfo
	optional map[string]struct{}
}

var _ SystemService = (*systemService)(nil)

// NewSystemService builds the readiness reporter.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	svc := &systemService{
		checks:   deps.HealthRepository,
		clock:    utcClock(deps.Clock),
		build:    deps.Build,
		optional: make(map[string]struct{}, len(deps.Optional)),
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.clock()
	}
	for _, name := range deps.Optional {
		if name = strings.TrimSpace(name); name != "" {
			svc.optional[name] = struct{}{}
		}
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (HealthReport, error) {
	if ctx == nil {
		return HealthReport{}, errors.New("system service: context is required")
	}
	report, err := s.checks.Collect(ctx)
	if err != nil {
		return HealthReport{}, err
	}

	checks := make(map[string]domain.HealthCheck, len(report.Checks))
	for name, check := range report.Checks {
		if _, ok := s.optional[name]; ok && check.Status == domain.HealthStatusError {
			check.Status = domain.HealthStatusDegraded
		}
		checks[name] = check
	}
	report.Checks = checks
	// Status is always derived here so optional downgrades take effect.
	report.Status = overallStatus(checks)

	s.stamp(&report)
	return report, nil
}

func (s *systemService) stamp(report *HealthReport) {
	now := s.clock()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	}
	report.GeneratedAt = report.GeneratedAt.UTC()
	if report.Version == "" {
		report.Version = s.build.Version
	}
	if report.CommitSHA == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if report.Environment == "" {
		report.Environment = s.build.Environment
	}
	if report.Datastore == "" {
		report.Datastore = s.build.Datastore
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}
}

func overallStatus(checks map[string]domain.HealthCheck) string {
	worst := domain.HealthStatusOK
	for _, check := range checks {
		if check.Status == domain.HealthStatusError {
			return domain.HealthStatusError
		}
		if check.Status == domain.HealthStatusDegraded {
			worst = domain.HealthStatusDegraded
		}
	}
	return worst
}
