package model

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleCollector Role = "COLLECTOR"
	RoleCitizen   Role = "CITIZEN"
)

func ParseRole(raw string) (Role, bool) {
	switch Role(raw) {
	case RoleAdmin, RoleCollector, RoleCitizen:
		return Role(raw), true
	}
	return "", false
}

// Principal is the authenticated actor attached to every request and
// socket connection. Credentials are validated upstream; this service
// trusts the token claims as-is.
type Principal struct {
	UserID uuid.UUID
	Role   Role
}

func (p Principal) IsAdmin() bool     { return p.Role == RoleAdmin }
func (p Principal) IsCollector() bool { return p.Role == RoleCollector }
func (p Principal) IsCitizen() bool   { return p.Role == RoleCitizen }

// Broadcast room names. The mapping from role to rooms lives here, in one
// place, so the HTTP boundary and the broadcast layer cannot drift apart.
const (
	RoomAdmins     = "role:admin"
	RoomCollectors = "role:collector"
)

func RoomCollector(id uuid.UUID) string { return "collector:" + id.String() }
func RoomCitizen(id uuid.UUID) string   { return "citizen:" + id.String() }

// RoomsFor lists every room a principal joins on connect: its role room
// plus, for collectors and citizens, an identity room for direct events.
func RoomsFor(p Principal) []string {
	switch p.Role {
	case RoleAdmin:
		return []string{RoomAdmins}
	case RoleCollector:
		return []string{RoomCollectors, RoomCollector(p.UserID)}
	case RoleCitizen:
		return []string{RoomCitizen(p.UserID)}
	}
	return nil
}
