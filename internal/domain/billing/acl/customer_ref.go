// Package acl shields the billing context from the identity service's
// representation of customers. Billing stores only an opaque customer
// reference and an optional display-name snapshot; the identity service
// remains the source of truth for customer master data.
package acl

import (
	"context"

	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/google/uuid"
)

// CustomerRef is a value object carrying the minimal customer data the
// billing context needs: the opaque identifier and a display name
// snapshotted at invoice creation time.
type CustomerRef struct {
	id   string
	name string
}

// NewCustomerRef creates a customer reference.
// Returns an error if the identifier is empty.
func NewCustomerRef(id, name string) (CustomerRef, error) {
	if id == "" {
		return CustomerRef{}, shared.NewDomainError("INVALID_CUSTOMER_ID", "Customer ID cannot be empty")
	}
	return CustomerRef{id: id, name: name}, nil
}

// ID returns the opaque customer identifier
func (c CustomerRef) ID() string {
	return c.id
}

// Name returns the snapshotted display name, possibly empty
func (c CustomerRef) Name() string {
	return c.name
}

// HasName returns true if a display name was resolved
func (c CustomerRef) HasName() bool {
	return c.name != ""
}

// CustomerLookup resolves customer references against the identity
// service. Lookups are best effort: a slow or unavailable identity
// service must never block invoice creation, so callers treat any error
// as "name unknown" and proceed.
type CustomerLookup interface {
	// FindCustomer resolves a customer reference for a tenant
	FindCustomer(ctx context.Context, tenantID uuid.UUID, customerID string) (CustomerRef, error)
}
