package models

import (
	"testing"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		name     string
		role     Role
		expected bool
	}{
		{"driver role", RoleDriver, true},
		{"mechanic role", RoleMechanic, true},
		{"admin role", RoleAdmin, true},
		{"invalid role", "customer", false},
		{"empty role", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValidRole(tt.role)
			if result != tt.expected {
				t.Errorf("IsValidRole(%s) = %v, want %v", tt.role, result, tt.expected)
			}
		})
	}
}

func TestUser_HasPermission(t *testing.T) {
	admin := &User{Role: RoleAdmin}
	driver := &User{Role: RoleDriver}
	mechanic := &User{Role: RoleMechanic}

	tests := []struct {
		name     string
		user     *User
		action   string
		expected bool
	}{
		{"admin can update emergency", admin, "update_emergency", true},
		{"admin can respond to booking", admin, "respond_booking", true},

		{"driver can respond to booking", driver, "respond_booking", true},
		{"driver can request load", driver, "request_load", true},
		{"driver can raise emergency", driver, "raise_emergency", true},
		{"driver cannot update emergency", driver, "update_emergency", false},

		{"mechanic can update emergency", mechanic, "update_emergency", true},
		{"mechanic can diagnose", mechanic, "diagnose", true},
		{"mechanic cannot respond to booking", mechanic, "respond_booking", false},

		{"unknown role has nothing", &User{Role: "guest"}, "view_bookings", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.user.HasPermission(tt.action); got != tt.expected {
				t.Errorf("HasPermission(%s) = %v, want %v", tt.action, got, tt.expected)
			}
		})
	}
}
