package compose

import (
	"context"
	"time"

	"github.com/kailas-cloud/propindex/internal/domain/project"
)

type mockOwners struct {
	owner project.Owner
	err   error
	delay time.Duration
	calls int
	nit   string
}

func (m *mockOwners) Lookup(ctx context.Context, nit string) (project.Owner, error) {
	m.calls++
	m.nit = nit
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return project.Owner{}, ctx.Err()
		}
	}
	return m.owner, m.err
}

func nestedProject() *project.Project {
	return &project.Project{
		ID:          12,
		Name:        "Torres del Sol",
		Description: "Apartamentos con vista",
		OwnerNIT:    "900123",
		Location: project.Location{
			Address:    "Calle 100 #15-20",
			City:       "Bogotá",
			Department: "Cundinamarca",
			Country:    "Colombia",
		},
		Price: project.Price{Currency: "COP", Min: 200000000, Max: 450000000},
		Units: &project.Units{
			Total:     120,
			Available: 30,
			Types:     []string{"Apartamento", "Penthouse"},
			Areas: map[string]project.AreaRange{
				"penthouse":   {Min: 120, Max: 180},
				"apartamento": {Min: 55, Max: 90},
			},
		},
		Area:         project.AreaRange{Min: 55, Max: 180},
		Amenities:    []string{"Piscina", "Gimnasio"},
		Status:       "active",
		PropertyType: "Apartamento",
		Schema:       project.SchemaNested,
	}
}
