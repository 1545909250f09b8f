package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/crm/invoicing/internal/domain/billing/acl"
	"github.com/crm/invoicing/internal/domain/shared"
	"github.com/crm/invoicing/internal/infrastructure/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CustomerClient resolves customer references against the external
// identity service over HTTP. Every lookup runs under a short deadline;
// callers treat a timeout or transport failure as "name unknown" and
// proceed, so the identity service can never block invoice creation.
type CustomerClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewCustomerClient creates an identity service client
func NewCustomerClient(cfg config.IdentityConfig, logger *zap.Logger) *CustomerClient {
	return &CustomerClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.Named("identity"),
	}
}

// customerResponse is the identity service's customer representation.
// Only the fields billing cares about are decoded.
type customerResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FindCustomer resolves a customer by its opaque identifier.
// Returns shared.ErrNotFound for a 404 so callers can distinguish an
// unknown customer from an unreachable identity service.
func (c *CustomerClient) FindCustomer(ctx context.Context, tenantID uuid.UUID, customerID string) (acl.CustomerRef, error) {
	if customerID == "" {
		return acl.CustomerRef{}, shared.NewDomainError("INVALID_CUSTOMER_ID", "Customer ID cannot be empty")
	}

	endpoint := fmt.Sprintf("%s/customers/%s", c.baseURL, url.PathEscape(customerID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return acl.CustomerRef{}, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Tenant-ID", tenantID.String())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Warn("identity lookup failed",
			zap.String("customer_id", customerID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)
		return acl.CustomerRef{}, fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return acl.CustomerRef{}, shared.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("identity lookup returned unexpected status",
			zap.String("customer_id", customerID),
			zap.Int("status", resp.StatusCode),
		)
		return acl.CustomerRef{}, fmt.Errorf("identity service returned status %d", resp.StatusCode)
	}

	var body customerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return acl.CustomerRef{}, fmt.Errorf("failed to decode identity response: %w", err)
	}

	return acl.NewCustomerRef(customerID, body.Name)
}

// Ensure CustomerClient implements the lookup port
var _ acl.CustomerLookup = (*CustomerClient)(nil)
