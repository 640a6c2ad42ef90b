// Package compose turns a canonical project into the text that gets embedded and
// the flat metadata stored next to the vector.
package compose

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/propindex/internal/domain"
	"github.com/kailas-cloud/propindex/internal/domain/metadata"
	"github.com/kailas-cloud/propindex/internal/domain/project"
	"github.com/kailas-cloud/propindex/internal/metrics"
)

// DefaultOwnerTimeout bounds the owner enrichment call.
const DefaultOwnerTimeout = 5 * time.Second

// OwnerLookup resolves a construction company by NIT.
type OwnerLookup interface {
	Lookup(ctx context.Context, nit string) (project.Owner, error)
}

// OwnerResult is the explicit outcome of the best-effort owner enrichment.
// Degraded means the lookup was attempted and failed; the composition then
// carries no owner contribution.
type OwnerResult struct {
	Owner    project.Owner
	Found    bool
	Degraded bool
	Err      error
}

// Composition is what gets indexed for one project.
type Composition struct {
	SearchText string
	Metadata   metadata.Metadata
	Owner      OwnerResult
}

// Compositor builds compositions. owners may be nil to disable enrichment.
type Compositor struct {
	owners  OwnerLookup
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a compositor. timeout <= 0 selects DefaultOwnerTimeout.
func New(owners OwnerLookup, timeout time.Duration, logger *zap.Logger) *Compositor {
	if timeout <= 0 {
		timeout = DefaultOwnerTimeout
	}
	return &Compositor{owners: owners, timeout: timeout, logger: logger}
}

// Compose never fails: enrichment problems are reported through Owner.
func (c *Compositor) Compose(ctx context.Context, p *project.Project) Composition {
	owner := c.lookupOwner(ctx, p)
	return Composition{
		SearchText: SearchText(p, owner.Owner),
		Metadata:   Metadata(p, owner.Owner),
		Owner:      owner,
	}
}

func (c *Compositor) lookupOwner(ctx context.Context, p *project.Project) OwnerResult {
	if c.owners == nil || p.OwnerNIT == "" {
		metrics.OwnerLookupsTotal.WithLabelValues("skipped").Inc()
		return OwnerResult{}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	o, err := c.owners.Lookup(ctx, p.OwnerNIT)
	switch {
	case err == nil:
		metrics.OwnerLookupsTotal.WithLabelValues("ok").Inc()
		return OwnerResult{Owner: o, Found: true}
	case errors.Is(err, domain.ErrNotFound):
		metrics.OwnerLookupsTotal.WithLabelValues("not_found").Inc()
		c.logger.Info("Project owner not registered",
			zap.Int64("project_id", p.ID), zap.String("nit", p.OwnerNIT))
		return OwnerResult{}
	default:
		metrics.OwnerLookupsTotal.WithLabelValues("degraded").Inc()
		c.logger.Warn("Owner enrichment failed, composing without owner",
			zap.Int64("project_id", p.ID), zap.String("nit", p.OwnerNIT), zap.Error(err))
		return OwnerResult{Degraded: true, Err: err}
	}
}

// SearchText is the lowercase, space-joined text embedded for a project.
func SearchText(p *project.Project, owner project.Owner) string {
	parts := []string{
		p.Name,
		p.Description,
		p.Location.Address,
		p.Location.City,
		p.Location.Department,
	}

	if p.Units != nil && len(p.Units.Types) > 0 {
		parts = append(parts, p.Units.Types...)
	} else {
		parts = append(parts, p.PropertyType)
	}

	parts = append(parts, owner.Name, owner.Email)
	parts = append(parts, p.Amenities...)

	if p.Price.Min > 0 && p.Price.Max > 0 {
		parts = append(parts, "precio "+formatNumber(p.Price.Min)+" a "+formatNumber(p.Price.Max))
	}

	if types := p.Units.AreaTypes(); len(types) > 0 {
		for _, t := range types {
			a := p.Units.Areas[t]
			parts = append(parts, "area "+t+" "+formatNumber(a.Min)+" a "+formatNumber(a.Max))
		}
	} else if p.Area.Min > 0 && p.Area.Max > 0 {
		parts = append(parts, "area "+formatNumber(p.Area.Min)+" a "+formatNumber(p.Area.Max))
	}

	if p.Units != nil && p.Units.Total > 0 {
		parts = append(parts, "unidades "+strconv.Itoa(p.Units.Total))
	}

	kept := parts[:0]
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			kept = append(kept, s)
		}
	}
	return strings.ToLower(strings.Join(kept, " "))
}

// Metadata is the flat scalar map stored with the vector. Every key is always
// present; missing strings are "" and missing numbers are 0.
func Metadata(p *project.Project, owner project.Owner) metadata.Metadata {
	m := metadata.New()

	m.SetNumber("project_id", float64(p.ID))
	m.SetString("name", p.Name)
	m.SetString("owner_name", owner.Name)
	m.SetString("amenities", amenitiesJSON(p.Amenities))

	m.SetString("location", p.Location.Address)
	m.SetString("city", p.Location.City)
	m.SetString("department", p.Location.Department)
	m.SetString("property_type", p.PropertyType)
	m.SetString("state", p.Status)
	m.SetString("construction_company_nit", p.OwnerNIT)

	m.SetNumber("price_min", p.Price.Min)
	m.SetNumber("price_max", p.Price.Max)
	m.SetNumber("area_min", p.Area.Min)
	m.SetNumber("area_max", p.Area.Max)

	var total, available int
	if p.Units != nil {
		total, available = p.Units.Total, p.Units.Available
	}
	m.SetNumber("total_units", float64(total))
	m.SetNumber("available_units", float64(available))

	return m
}

func amenitiesJSON(a []string) string {
	if len(a) == 0 {
		return "[]"
	}
	b, err := json.Marshal(a)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
