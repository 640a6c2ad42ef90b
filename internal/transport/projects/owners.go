package projects

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/project"
)

// DefaultOwnerTimeout bounds one owner lookup.
const DefaultOwnerTimeout = 5 * time.Second

// OwnerClient looks up construction companies (GET {base}/project-owners/{nit}).
type OwnerClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewOwnerClient creates an owners client. timeout <= 0 selects DefaultOwnerTimeout.
func NewOwnerClient(baseURL string, timeout time.Duration) *OwnerClient {
	if timeout <= 0 {
		timeout = DefaultOwnerTimeout
	}
	return &OwnerClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Lookup fetches the owner registered under nit.
func (c *OwnerClient) Lookup(ctx context.Context, nit string) (project.Owner, error) {
	body, err := doGet(ctx, c.httpClient, c.baseURL+"/project-owners/"+url.PathEscape(nit))
	if err != nil {
		return project.Owner{}, err
	}
	var o project.Owner
	if err := json.Unmarshal(body, &o); err != nil {
		return project.Owner{}, fmt.Errorf("decode owner %s: %w: %w", nit, domain.ErrUpstreamUnavailable, err)
	}
	if o.NIT == "" {
		o.NIT = nit
	}
	return o, nil
}
