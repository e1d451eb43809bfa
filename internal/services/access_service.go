package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/templatemart/api/internal/access"
	"github.com/templatemart/api/internal/nav"
	"github.com/templatemart/api/internal/platform/events"
	"github.com/templatemart/api/internal/platform/requestctx"
)

// ErrAccessSessionMissing indicates the request carries no session to hold detector state.
var ErrAccessSessionMissing = errors.New("access service: session is required")

// AccessSettings configures the unlock gestures.
type AccessSettings struct {
	Sequence       []string
	Chord          string
	ClickThreshold int
	ClickTarget    string
}

// AccessServiceDeps bundles constructor inputs for the access service.
type AccessServiceDeps struct {
	Settings AccessSettings
	Events   events.Publisher
	Clock    func() time.Time
}

type accessService struct {
	opts   []access.Option
	events events.Publisher
	clock  func() time.Time
}

var _ AccessService = (*accessService)(nil)

// NewAccessService constructs the access service. The detector itself is rebuilt per call
// from the session store, so the service holds no per-session state.
func NewAccessService(deps AccessServiceDeps) (AccessService, error) {
	var opts []access.Option
	if len(deps.Settings.Sequence) > 0 {
		opts = append(opts, access.WithSequence(deps.Settings.Sequence...))
	}
	if deps.Settings.Chord != "" {
		if _, ok := access.ParseChord(deps.Settings.Chord); !ok {
			return nil, errors.New("access service: chord " + deps.Settings.Chord + " is invalid")
		}
		opts = append(opts, access.WithChord(deps.Settings.Chord))
	}
	if deps.Settings.ClickThreshold > 0 {
		opts = append(opts, access.WithClickThreshold(deps.Settings.ClickThreshold))
	}
	if deps.Settings.ClickTarget != "" {
		opts = append(opts, access.WithClickTarget(deps.Settings.ClickTarget))
	}
	return &accessService{
		opts:   opts,
		events: deps.Events,
		clock:  utcClock(deps.Clock),
	}, nil
}

func (s *accessService) State(ctx context.Context, store access.SessionStore) (AccessState, error) {
	detector, _, err := s.detector(ctx, store)
	if err != nil {
		return AccessState{}, err
	}
	return toAccessState(detector.Snapshot()), nil
}

func (s *accessService) Key(ctx context.Context, store access.SessionStore, ev access.KeyEvent) (AccessResult, error) {
	detector, fired, err := s.detector(ctx, store)
	if err != nil {
		return AccessResult{}, err
	}
	handled := detector.Key(ev)
	return AccessResult{
		State:       toAccessState(detector.Snapshot()),
		Handled:     handled,
		ElevatedNow: *fired != "",
	}, nil
}

func (s *accessService) Click(ctx context.Context, store access.SessionStore, target string) (AccessResult, error) {
	detector, fired, err := s.detector(ctx, store)
	if err != nil {
		return AccessResult{}, err
	}
	detector.Click(target)
	return AccessResult{
		State:       toAccessState(detector.Snapshot()),
		ElevatedNow: *fired != "",
	}, nil
}

func (s *accessService) Navigation(ctx context.Context, store access.SessionStore, currentPath string) ([]NavItem, error) {
	detector, _, err := s.detector(ctx, store)
	if err != nil {
		return nil, err
	}
	return nav.Build(currentPath, detector.IsElevated()), nil
}

// detector restores a Detector from store. fired receives the trigger that elevated the
// session during this call, if any.
func (s *accessService) detector(ctx context.Context, store access.SessionStore) (*access.Detector, *access.Trigger, error) {
	if store == nil {
		return nil, nil, ErrAccessSessionMissing
	}
	var fired access.Trigger
	opts := append(append([]access.Option(nil), s.opts...), access.WithOnElevate(func(trigger access.Trigger) {
		fired = trigger
		sessionID := requestctx.SessionID(ctx)
		requestctx.Logger(ctx).Info("hidden admin entry revealed",
			zap.String("trigger", string(trigger)),
			zap.String("sessionID", sessionID),
		)
		publish(ctx, s.events, events.Event{
			Type:       events.TypeAccessElevated,
			Subject:    sessionID,
			OccurredAt: s.clock(),
			Data:       map[string]any{"trigger": string(trigger)},
		})
	}))
	return access.NewDetector(store, opts...), &fired, nil
}

func toAccessState(state access.State) AccessState {
	return AccessState{
		Elevated:   state.Elevated,
		Window:     state.Window,
		ClickCount: state.ClickCount,
	}
}
