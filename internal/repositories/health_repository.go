package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/templatemart/api/internal/domain"
)

const defaultDependencyTimeout = 1500 * time.Millisecond

// DependencyCheck is one readiness probe.
type DependencyCheck struct {
	Name    string
	Timeout time.Duration
	Check   func(context.Context) error
}

// DependencyHealthOption customises the health repository.
type DependencyHealthOption func(*dependencyHealthRepository)

// WithDependencyTimeout sets the timeout for checks that declare none.
func WithDependencyTimeout(timeout time.Duration) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if timeout > 0 {
			repo.defaultTimeout = timeout
		}
	}
}

// WithDependencyClock injects a clock.
func WithDependencyClock(clock func() time.Time) DependencyHealthOption {
	return func(repo *dependencyHealthRepository) {
		if clock != nil {
			repo.now = clock
		}
	}
}

type dependencyHealthRepository struct {
	checks         []DependencyCheck
	defaultTimeout time.Duration
	now            func() time.Time
}

var _ HealthRepository = (*dependencyHealthRepository)(nil)

// NewDependencyHealthRepository validates the check set up front.
func NewDependencyHealthRepository(checks []DependencyCheck, opts ...DependencyHealthOption) (HealthRepository, error) {
	if len(checks) == 0 {
		return nil, errors.New("health repository: at least one dependency check is required")
	}
	seen := make(map[string]struct{}, len(checks))
	for _, check := range checks {
		name := strings.TrimSpace(check.Name)
		if name == "" {
			return nil, errors.New("health repository: dependency check missing name")
		}
		if check.Check == nil {
			return nil, fmt.Errorf("health repository: dependency %s missing check function", name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("health repository: duplicate dependency %s", name)
		}
		seen[name] = struct{}{}
	}

	repo := &dependencyHealthRepository{
		checks:         append([]DependencyCheck(nil), checks...),
		defaultTimeout: defaultDependencyTimeout,
		now:            time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// Collect runs every check concurrently and waits for all of them.
func (r *dependencyHealthRepository) Collect(ctx context.Context) (domain.HealthReport, error) {
	results := make(map[string]domain.HealthCheck, len(r.checks))
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, check := range r.checks {
		wg.Add(1)
		go func(check DependencyCheck) {
			defer wg.Done()
			result := r.run(ctx, check)
			mu.Lock()
			results[strings.TrimSpace(check.Name)] = result
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	status := domain.HealthStatusOK
	for _, result := range results {
		switch result.Status {
		case domain.HealthStatusError:
			status = domain.HealthStatusError
		case domain.HealthStatusDegraded:
			if status == domain.HealthStatusOK {
				status = domain.HealthStatusDegraded
			}
		}
	}

	return domain.HealthReport{
		Status:      status,
		Checks:      results,
		GeneratedAt: r.now(),
	}, nil
}

func (r *dependencyHealthRepository) run(ctx context.Context, check DependencyCheck) domain.HealthCheck {
	timeout := check.Timeout
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := r.now()
	err := check.Check(checkCtx)
	end := r.now()

	result := domain.HealthCheck{
		Status:    domain.HealthStatusOK,
		Detail:    "ok",
		Latency:   end.Sub(start),
		CheckedAt: end,
	}
	switch {
	case err == nil && checkCtx.Err() == nil:
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(checkCtx.Err(), context.DeadlineExceeded):
		result.Status = domain.HealthStatusError
		result.Detail = "timeout"
	case errors.Is(err, context.Canceled) || checkCtx.Err() != nil:
		result.Status = domain.HealthStatusError
		result.Detail = "cancelled"
	default:
		result.Status = domain.HealthStatusDegraded
		result.Detail = err.Error()
	}
	return result
}
