package state

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
)

func scheduledRoute() model.Route {
	r := model.Route{
		ID:          uuid.New(),
		CollectorID: uuid.New(),
		Status:      model.RouteStatusDraft,
		Stops: []model.RouteStop{
			{PointID: uuid.New(), Position: 0, Status: model.StopStatusPending},
		},
	}
	r, _ = ScheduleRoute(r, time.Now())
	return r
}

func TestScheduleRoute(t *testing.T) {
	now := time.Now()

	r := model.Route{ID: uuid.New(), Status: model.RouteStatusDraft}
	if _, err := ScheduleRoute(r, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("route without collector and stops must not schedule, got %v", err)
	}

	r.CollectorID = uuid.New()
	r.Stops = []model.RouteStop{{PointID: uuid.New()}}
	scheduled, err := ScheduleRoute(r, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scheduled.Status != model.RouteStatusScheduled {
		t.Fatalf("status = %s, want SCHEDULED", scheduled.Status)
	}
}

func TestStartRoute(t *testing.T) {
	now := time.Now()
	start := geo.Coordinates{Lng: -58.44, Lat: -3.14}

	r, err := StartRoute(scheduledRoute(), start, now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Status != model.RouteStatusInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", r.Status)
	}
	if r.StartedAt == nil || !r.StartedAt.Equal(now) {
		t.Fatalf("start timestamp not recorded")
	}
	if r.StartLng == nil || *r.StartLng != start.Lng || r.CurrentLat == nil || *r.CurrentLat != start.Lat {
		t.Fatalf("start/current location not initialized")
	}

	if _, err := StartRoute(r, start, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("double start must fail, got %v", err)
	}
}

func TestCompleteRoute_Gate(t *testing.T) {
	now := time.Now()
	end := geo.Coordinates{Lng: -58.45, Lat: -3.15}
	r, _ := StartRoute(scheduledRoute(), end, now)

	open := model.CollectionPoint{ID: uuid.New(), Status: model.PointStatusInProgress}
	done := model.CollectionPoint{ID: uuid.New(), Status: model.PointStatusCollected}

	_, err := CompleteRoute(r, []model.CollectionPoint{done, open}, end, now.Add(time.Hour))
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("completion with open points must fail, got %v", err)
	}
	var unresolved *UnresolvedPointsError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error must carry the unresolved point list, got %T", err)
	}
	if len(unresolved.PointIDs) != 1 || unresolved.PointIDs[0] != open.ID {
		t.Fatalf("unresolved = %v, want [%s]", unresolved.PointIDs, open.ID)
	}

	cancelled := model.CollectionPoint{ID: uuid.New(), Status: model.PointStatusCancelled}
	completed, err := CompleteRoute(r, []model.CollectionPoint{done, cancelled}, end, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("completion with all points resolved failed: %v", err)
	}
	if completed.Status != model.RouteStatusCompleted {
		t.Fatalf("status = %s, want COMPLETED", completed.Status)
	}
	if completed.ActualMinutes == nil || *completed.ActualMinutes < 59 || *completed.ActualMinutes > 61 {
		t.Fatalf("actual duration = %v, want ~60 minutes", completed.ActualMinutes)
	}
	if completed.EndLng == nil || *completed.EndLng != end.Lng {
		t.Fatalf("end location not recorded")
	}
}

func TestCancelRoute(t *testing.T) {
	now := time.Now()

	cancelled, err := CancelRoute(scheduledRoute(), now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != model.RouteStatusCancelled {
		t.Fatalf("status = %s, want CANCELLED", cancelled.Status)
	}

	inProgress, _ := StartRoute(scheduledRoute(), geo.Coordinates{}, now)
	if _, err := CancelRoute(inProgress, now); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("in-progress route must not cancel through this path, got %v", err)
	}
}
