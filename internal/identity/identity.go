// Package identity carries the active tenant explicitly from request headers
// into page entry points.
package identity

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// Header names read by FromRequest.
const (
	HeaderTenantID   = "X-Tenant-Id"
	HeaderPropertyID = "X-Property-Id"
)

// ErrInvalidID is returned when a supplied id is not a UUID.
var ErrInvalidID = errors.New("invalid id")

// Identity is the tenant a page acts for. The zero value means no tenant is configured.
type Identity struct {
	TenantID   string `json:"tenant_id,omitempty"`
	PropertyID string `json:"property_id,omitempty"`
}

// Known reports whether a tenant is set.
func (i Identity) Known() bool { return i.TenantID != "" }

// Parse validates and normalizes the raw ids. Empty values are allowed.
func Parse(tenantID, propertyID string) (Identity, error) {
	var id Identity
	var err error
	if id.TenantID, err = normalize("tenant", tenantID); err != nil {
		return Identity{}, err
	}
	if id.PropertyID, err = normalize("property", propertyID); err != nil {
		return Identity{}, err
	}
	return id, nil
}

// FromRequest parses the identity headers of r.
func FromRequest(r *http.Request) (Identity, error) {
	return Parse(r.Header.Get(HeaderTenantID), r.Header.Get(HeaderPropertyID))
}

func normalize(kind, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := uuid.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s id %q", ErrInvalidID, kind, raw)
	}
	return u.String(), nil
}
