package state

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/model"
)

var (
	admin     = model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	collector = model.Principal{UserID: uuid.New(), Role: model.RoleCollector}
	citizen   = model.Principal{UserID: uuid.New(), Role: model.RoleCitizen}
)

func pendingPoint() model.CollectionPoint {
	return model.CollectionPoint{
		ID:        uuid.New(),
		CitizenID: citizen.UserID,
		Status:    model.PointStatusPending,
	}
}

func TestSchedulePoint(t *testing.T) {
	now := time.Now()
	routeID := uuid.New()

	p, err := SchedulePoint(pendingPoint(), routeID, 2, admin, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != model.PointStatusScheduled {
		t.Fatalf("status = %s, want SCHEDULED", p.Status)
	}
	if p.RouteID == nil || *p.RouteID != routeID {
		t.Fatalf("route linkage not set")
	}
	if p.RouteOrder == nil || *p.RouteOrder != 2 {
		t.Fatalf("route order not set")
	}
	if len(p.History) != 1 || p.History[0].Status != model.PointStatusScheduled {
		t.Fatalf("history not appended: %v", p.History)
	}
	if p.History[0].ActorID != admin.UserID {
		t.Fatalf("history actor = %s, want admin", p.History[0].ActorID)
	}
}

func TestSchedulePoint_RejectsNonPending(t *testing.T) {
	p := pendingPoint()
	p.Status = model.PointStatusCollected
	got, err := SchedulePoint(p, uuid.New(), 0, admin, time.Now())
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if got.Status != model.PointStatusCollected || len(got.History) != 0 {
		t.Fatalf("rejected transition must not mutate the record")
	}
}

func TestStartPoint_WrongRoute(t *testing.T) {
	now := time.Now()
	routeID := uuid.New()
	p, _ := SchedulePoint(pendingPoint(), routeID, 0, admin, now)

	if _, err := StartPoint(p, uuid.New(), collector, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("starting a point on a different route must fail, got %v", err)
	}
	started, err := StartPoint(p, routeID, collector, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Status != model.PointStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", started.Status)
	}
}

func TestCollectPoint(t *testing.T) {
	now := time.Now()
	routeID := uuid.New()
	p, _ := SchedulePoint(pendingPoint(), routeID, 0, admin, now)
	p, _ = StartPoint(p, routeID, collector, now)

	collected, err := CollectPoint(p, collector.UserID, 12.5, nil, collector, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if collected.Status != model.PointStatusCollected {
		t.Fatalf("status = %s, want COLLECTED", collected.Status)
	}
	if collected.CollectedBy == nil || *collected.CollectedBy != collector.UserID {
		t.Fatalf("collector not stamped")
	}
	if collected.CollectedQty == nil || *collected.CollectedQty != 12.5 {
		t.Fatalf("quantity not stamped")
	}

	// Collecting again is the expected race outcome and must be rejected.
	if _, err := CollectPoint(collected, collector.UserID, 1, nil, collector, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double collect must fail, got %v", err)
	}
}

func TestCancelPoint_CitizenOnlyWhilePending(t *testing.T) {
	now := time.Now()

	cancelled, err := CancelPoint(pendingPoint(), citizen, nil, now)
	if err != nil {
		t.Fatalf("citizen cancel of pending point failed: %v", err)
	}
	if cancelled.Status != model.PointStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}

	scheduled, _ := SchedulePoint(pendingPoint(), uuid.New(), 0, admin, now)
	if _, err := CancelPoint(scheduled, citizen, nil, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("citizen cancel of scheduled point must fail, got %v", err)
	}

	// Admin can cancel any non-terminal point; linkage is cleared.
	got, err := CancelPoint(scheduled, admin, nil, now)
	if err != nil {
		t.Fatalf("admin cancel failed: %v", err)
	}
	if got.RouteID != nil || got.RouteOrder != nil {
		t.Fatalf("route linkage must be cleared on cancel")
	}
}

func TestCancelPoint_TerminalImmutable(t *testing.T) {
	now := time.Now()
	routeID := uuid.New()
	p, _ := SchedulePoint(pendingPoint(), routeID, 0, admin, now)
	p, _ = StartPoint(p, routeID, collector, now)
	p, _ = CollectPoint(p, collector.UserID, 1, nil, collector, now)

	if _, err := CancelPoint(p, admin, nil, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("cancel of collected point must fail, got %v", err)
	}
}

func TestReleasePoint(t *testing.T) {
	now := time.Now()
	p, _ := SchedulePoint(pendingPoint(), uuid.New(), 1, admin, now)

	released, err := ReleasePoint(p, admin, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if released.Status != model.PointStatusPending {
		t.Fatalf("status = %s, want PENDING", released.Status)
	}
	if released.RouteID != nil || released.RouteOrder != nil {
		t.Fatalf("route linkage must be cleared on release")
	}

	if _, err := ReleasePoint(pendingPoint(), admin, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("release of pending point must fail, got %v", err)
	}
}
