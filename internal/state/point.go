// Package state holds the pure transition rules for collection points and
// routes. Functions take the current record and return the next one (or an
// error) without touching storage, so the machines are testable on their
// own and every caller goes through the same rules.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nurpe/greenops-routes/internal/model"
)

// ErrInvalidTransition is wrapped by every rejected transition. The wrapped
// message always carries the current status so callers can reconcile.
var ErrInvalidTransition = errors.New("invalid state transition")

func invalidPoint(p model.CollectionPoint, action string) error {
	return fmt.Errorf("%w: cannot %s point %s in status %s", ErrInvalidTransition, action, p.ID, p.Status)
}

func appendHistory(p model.CollectionPoint, actor model.Principal, note *string, now time.Time) model.CollectionPoint {
	p.History = append(p.History, model.PointHistoryEntry{
		ID:        uuid.New(),
		PointID:   p.ID,
		Status:    p.Status,
		ActorID:   actor.UserID,
		ActorRole: actor.Role,
		Note:      note,
		CreatedAt: now,
	})
	p.UpdatedAt = now
	return p
}

// SchedulePoint attaches a pending point to a route at the given order.
// Only an admin schedules points, and only while they are exactly pending.
func SchedulePoint(p model.CollectionPoint, routeID uuid.UUID, order int, actor model.Principal, now time.Time) (model.CollectionPoint, error) {
	if p.Status != model.PointStatusPending {
		return p, invalidPoint(p, "schedule")
	}
	p.Status = model.PointStatusScheduled
	p.RouteID = &routeID
	p.RouteOrder = &order
	return appendHistory(p, actor, nil, now), nil
}

// StartPoint moves a scheduled point into progress when its route starts.
func StartPoint(p model.CollectionPoint, routeID uuid.UUID, actor model.Principal, now time.Time) (model.CollectionPoint, error) {
	if p.Status != model.PointStatusScheduled {
		return p, invalidPoint(p, "start")
	}
	if p.RouteID == nil || *p.RouteID != routeID {
		return p, fmt.Errorf("%w: point %s does not belong to route %s", ErrInvalidTransition, p.ID, routeID)
	}
	p.Status = model.PointStatusInProgress
	return appendHistory(p, actor, nil, now), nil
}

// CollectPoint finalizes a point from a check-in, stamping the collector,
// timestamp and actual quantity. An already collected or cancelled point
// is rejected untouched.
func CollectPoint(p model.CollectionPoint, collectorID uuid.UUID, quantity float64, notes *string, actor model.Principal, now time.Time) (model.CollectionPoint, error) {
	if p.Status != model.PointStatusScheduled && p.Status != model.PointStatusInProgress {
		return p, invalidPoint(p, "collect")
	}
	p.Status = model.PointStatusCollected
	p.CollectedBy = &collectorID
	p.CollectedAt = &now
	p.CollectedQty = &quantity
	p.CollectionNotes = notes
	return appendHistory(p, actor, notes, now), nil
}

// CancelPoint cancels a non-terminal point. Citizens may only cancel while
// the point is still pending; admins may cancel any non-terminal point.
func CancelPoint(p model.CollectionPoint, actor model.Principal, note *string, now time.Time) (model.CollectionPoint, error) {
	if p.Status.Terminal() {
		return p, invalidPoint(p, "cancel")
	}
	if actor.IsCitizen() && p.Status != model.PointStatusPending {
		return p, invalidPoint(p, "cancel")
	}
	p.Status = model.PointStatusCancelled
	p.RouteID = nil
	p.RouteOrder = nil
	return appendHistory(p, actor, note, now), nil
}

// ReleasePoint returns a scheduled point to pending when its route is
// cancelled, clearing the route linkage.
func ReleasePoint(p model.CollectionPoint, actor model.Principal, now time.Time) (model.CollectionPoint, error) {
	if p.Status != model.PointStatusScheduled && p.Status != model.PointStatusInProgress {
		return p, invalidPoint(p, "release")
	}
	p.Status = model.PointStatusPending
	p.RouteID = nil
	p.RouteOrder = nil
	return appendHistory(p, actor, nil, now), nil
}
