// Package camunda fetches deployed process definitions from a
// Camunda 7 style engine REST API.
package camunda

import (
	"context"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors"
)

// VendorName identifies this source in plans, runs, and the entity map.
const VendorName = "camunda"

// Source lists and loads process definitions from an engine.
type Source struct {
	client *resty.Client
	log    *telemetry.Logger
}

// New builds a Camunda source. The base URL should point at the engine
// REST root, e.g. http://localhost:8080/engine-rest.
func New(cfg vendors.ClientConfig, log *telemetry.Logger) *Source {
	return &Source{
		client: vendors.NewRestClient(cfg, log),
		log:    log.NewComponentLogger("camunda"),
	}
}

// Register adds this vendor to a registry.
func Register(r *vendors.Registry) {
	r.Register(vendors.Info{
		Name:        VendorName,
		Description: "BPMN 2.0 process definitions deployed to a Camunda engine",
		EntityKind:  "process",
	}, func(cfg vendors.ClientConfig, log *telemetry.Logger) (migrate.Source, error) {
		if cfg.BaseURL == "" {
			return nil, migrate.NewPermanentError(
				"camunda vendor requires an engine base URL", nil).
				WithCode(migrate.ErrCodeValidation)
		}
		return New(cfg, log), nil
	})
}

func (s *Source) Vendor() string { return VendorName }

type definition struct {
	ID        string `json:"id"`
	Key       string `json:"key"`
	Name      string `json:"name"`
	Version   int    `json:"version"`
	Suspended bool   `json:"suspended"`
}

// List pages through the latest version of every deployed definition.
// The engine paginates with firstResult offsets, so the cursor is the
// next offset as a string.
func (s *Source) List(ctx context.Context, cursor string, limit int) (*migrate.Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, migrate.NewPermanentError(
				"invalid offset cursor", err).
				WithVendor(VendorName).WithCode(migrate.ErrCodeValidation)
		}
		offset = n
	}

	var defs []definition
	resp, err := s.client.R().SetContext(ctx).
		SetResult(&defs).
		SetQueryParam("latestVersion", "true").
		SetQueryParam("sortBy", "key").
		SetQueryParam("sortOrder", "asc").
		SetQueryParam("firstResult", strconv.Itoa(offset)).
		SetQueryParam("maxResults", strconv.Itoa(limit)).
		Get("/process-definition")
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}

	page := &migrate.Page{}
	for _, d := range defs {
		name := d.Name
		if name == "" {
			name = d.Key
		}
		labels := map[string]string{
			"key":     d.Key,
			"version": strconv.Itoa(d.Version),
		}
		if d.Suspended {
			labels["suspended"] = "true"
		}
		page.Stubs = append(page.Stubs, migrate.EntityStub{
			Ref:    d.ID,
			Kind:   "process",
			Name:   name,
			Labels: labels,
		})
	}
	if len(defs) == limit {
		page.NextCursor = strconv.Itoa(offset + limit)
	}
	return page, nil
}

// Load fetches and parses the definition XML. The payload is a
// *bpmn.Process.
func (s *Source) Load(ctx context.Context, ref string) (*migrate.Entity, error) {
	var result struct {
		ID        string `json:"id"`
		BPMN20XML string `json:"bpmn20Xml"`
	}
	resp, err := s.client.R().SetContext(ctx).
		SetResult(&result).
		Get("/process-definition/" + ref + "/xml")
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}

	process, err := bpmn.ParseOne([]byte(result.BPMN20XML))
	if err != nil {
		return nil, err
	}

	name := process.Name
	if name == "" {
		name = process.ID
	}
	s.log.WithEntity(ref).Debugf("loaded definition %q: %d elements", name, len(process.Elements))

	return &migrate.Entity{
		EntityStub: migrate.EntityStub{Ref: ref, Kind: "process", Name: name},
		Payload:    process,
	}, nil
}
