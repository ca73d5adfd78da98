package domain

import (
	"slices"
	"strings"
	"time"
)

// Hub is a collection point where pickups are weighed.
type Hub struct {
	ID        string
	Name      string
	City      string
	CreatedAt time.Time
}

// Recycler is a licensed facility that receives lots.
type Recycler struct {
	ID            string
	Name          string
	LicenseNumber string
	CreatedAt     time.Time
}

// MaterialCategory groups e-waste of the same kind.
type MaterialCategory struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// UserRole describes what a user may act as in the custody chain.
type UserRole string

// UserRole values.
const (
	UserRoleAdmin            UserRole = "ADMIN"
	UserRoleHubOperator      UserRole = "HUB_OPERATOR"
	UserRoleFieldCaptain     UserRole = "FIELD_CAPTAIN"
	UserRoleRecyclerOperator UserRole = "RECYCLER_OPERATOR"
)

var validUserRoles = []UserRole{UserRoleAdmin, UserRoleHubOperator, UserRoleFieldCaptain, UserRoleRecyclerOperator}

// User is an operator identity recorded as actor on custody events.
type User struct {
	ID        string
	Name      string
	Role      UserRole
	CreatedAt time.Time
}

// NewHub constructs a hub.
func NewHub(id, name, city string, now time.Time) (Hub, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return Hub{}, ErrInvalidID
	}
	if name == "" {
		return Hub{}, ErrInvalidName
	}
	return Hub{ID: id, Name: name, City: strings.TrimSpace(city), CreatedAt: now.UTC()}, nil
}

// NewRecycler constructs a recycler.
func NewRecycler(id, name, licenseNumber string, now time.Time) (Recycler, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return Recycler{}, ErrInvalidID
	}
	if name == "" {
		return Recycler{}, ErrInvalidName
	}
	return Recycler{ID: id, Name: name, LicenseNumber: strings.TrimSpace(licenseNumber), CreatedAt: now.UTC()}, nil
}

// NewMaterialCategory constructs a material category. The id doubles as the
// lot code prefix source, so callers usually pick short mnemonic ids.
func NewMaterialCategory(id, name string, now time.Time) (MaterialCategory, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return MaterialCategory{}, ErrInvalidID
	}
	if name == "" {
		return MaterialCategory{}, ErrInvalidName
	}
	return MaterialCategory{ID: id, Name: name, CreatedAt: now.UTC()}, nil
}

// NewUser constructs a user.
func NewUser(id, name string, role UserRole, now time.Time) (User, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		return User{}, ErrInvalidID
	}
	if name == "" {
		return User{}, ErrInvalidName
	}
	if !slices.Contains(validUserRoles, role) {
		return User{}, ErrInvalidRole
	}
	return User{ID: id, Name: name, Role: role, CreatedAt: now.UTC()}, nil
}
