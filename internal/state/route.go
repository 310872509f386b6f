package state

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/geo"
	"github.com/nurpe/greenops-routes/internal/model"
)

func invalidRoute(r model.Route, action string) error {
	return fmt.Errorf("%w: cannot %s route %s in status %s", ErrInvalidTransition, action, r.ID, r.Status)
}

// UnresolvedPointsError rejects route completion while stops remain open.
// It wraps ErrInvalidTransition and carries the offending point ids so the
// dashboard can list exactly what is blocking.
type UnresolvedPointsError struct {
	RouteID  uuid.UUID
	PointIDs []uuid.UUID
}

func (e *UnresolvedPointsError) Error() string {
	ids := make([]string, len(e.PointIDs))
	for i, id := range e.PointIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%v: route %s has unresolved points: %s", ErrInvalidTransition, e.RouteID, strings.Join(ids, ", "))
}

func (e *UnresolvedPointsError) Unwrap() error { return ErrInvalidTransition }

// ScheduleRoute moves a draft route to scheduled once a collector and an
// ordered point set are attached.
func ScheduleRoute(r model.Route, now time.Time) (model.Route, error) {
	if r.Status != model.RouteStatusDraft {
		return r, invalidRoute(r, "schedule")
	}
	if r.CollectorID == uuid.Nil || len(r.Stops) == 0 {
		return r, fmt.Errorf("%w: route %s needs a collector and at least one stop", ErrInvalidTransition, r.ID)
	}
	r.Status = model.RouteStatusScheduled
	r.UpdatedAt = now
	return r, nil
}

// StartRoute begins execution. A start location is mandatory; it seeds the
// current-location tracking.
func StartRoute(r model.Route, start geo.Coordinates, now time.Time) (model.Route, error) {
	if r.Status != model.RouteStatusScheduled {
		return r, invalidRoute(r, "start")
	}
	r.Status = model.RouteStatusInProgress
	r.StartedAt = &now
	r.StartLng, r.StartLat = &start.Lng, &start.Lat
	lng, lat := start.Lng, start.Lat
	r.CurrentLng, r.CurrentLat = &lng, &lat
	r.UpdatedAt = now
	return r, nil
}

// CompleteRoute finishes execution. Blocked while any point on the route
// is neither collected nor cancelled; the error lists the unresolved ids.
func CompleteRoute(r model.Route, points []model.CollectionPoint, end geo.Coordinates, now time.Time) (model.Route, error) {
	if r.Status != model.RouteStatusInProgress {
		return r, invalidRoute(r, "complete")
	}

	var unresolved []uuid.UUID
	for _, p := range points {
		if !p.Status.Terminal() {
			unresolved = append(unresolved, p.ID)
		}
	}
	if len(unresolved) > 0 {
		return r, &UnresolvedPointsError{RouteID: r.ID, PointIDs: unresolved}
	}

	r.Status = model.RouteStatusCompleted
	r.CompletedAt = &now
	r.EndLng, r.EndLat = &end.Lng, &end.Lat
	if r.StartedAt != nil {
		minutes := now.Sub(*r.StartedAt).Minutes()
		r.ActualMinutes = &minutes
	}
	r.UpdatedAt = now
	return r, nil
}

// CancelRoute is permitted from draft or scheduled only. A route already
// in progress must run to completion or be handled as an incident.
func CancelRoute(r model.Route, now time.Time) (model.Route, error) {
	if r.Status != model.RouteStatusDraft && r.Status != model.RouteStatusScheduled {
		return r, invalidRoute(r, "cancel")
	}
	r.Status = model.RouteStatusCancelled
	r.UpdatedAt = now
	return r, nil
}
