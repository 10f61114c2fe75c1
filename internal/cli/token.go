package cli

import (
	"fmt"
	"time"

	"github.com/hunchoblendz/DryJets-Mrchntxdrvr-sub002/internal/general/jwt"
)

// GenerateDriverToken mints a JWT for a driver or dispatcher account.
// It uses jwt.Manager and returns the raw token plus the claims.
//
// Typical use (dev-only):
//
//	token, _, err := cli.GenerateDriverToken(secret, "driver-42", "DRIVER", 12*time.Hour)
//
// Keep this package dev/internal only. Do not call it from production code paths.
func GenerateDriverToken(secret, driverID, roleStr string, ttl time.Duration) (string, jwt.Claims, error) {
	role, ok := jwt.ParseRole(roleStr)
	if !ok {
		return "", jwt.Claims{}, fmt.Errorf("invalid role %q: want DRIVER or DISPATCHER", roleStr)
	}

	mgr := jwt.NewManager(secret, ttl)

	token, claims, err := mgr.IssueToken(driverID, role)
	if err != nil {
		return "", jwt.Claims{}, fmt.Errorf("issue token: %w", err)
	}

	return token, *claims, nil
}
