// Package typeform fetches forms from the Typeform Create API and
// exposes them as migratable entities.
package typeform

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors"
)

// VendorName identifies this source in plans, runs, and the entity map.
const VendorName = "typeform"

// DefaultBaseURL is the production Typeform API root.
const DefaultBaseURL = "https://api.typeform.com"

// Source lists and loads Typeform forms.
type Source struct {
	client *resty.Client
	log    *telemetry.Logger
}

// New builds a Typeform source.
func New(cfg vendors.ClientConfig, log *telemetry.Logger) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	return &Source{
		client: vendors.NewRestClient(cfg, log),
		log:    log.NewComponentLogger("typeform"),
	}
}

// Register adds this vendor to a registry.
func Register(r *vendors.Registry) {
	r.Register(vendors.Info{
		Name:        VendorName,
		Description: "Typeform forms with fields and logic jumps",
		EntityKind:  "form",
	}, func(cfg vendors.ClientConfig, log *telemetry.Logger) (migrate.Source, error) {
		return New(cfg, log), nil
	})
}

func (s *Source) Vendor() string { return VendorName }

// List pages through forms. Typeform paginates with 1-based page
// numbers, so the cursor is the next page number as a string.
func (s *Source) List(ctx context.Context, cursor string, limit int) (*migrate.Page, error) {
	pageNum := 1
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, migrate.NewPermanentError(
				fmt.Sprintf("invalid page cursor %q", cursor), err).
				WithVendor(VendorName).WithCode(migrate.ErrCodeValidation)
		}
		pageNum = n
	}
	if limit > 200 {
		limit = 200
	}

	var result struct {
		TotalItems int `json:"total_items"`
		PageCount  int `json:"page_count"`
		Items      []struct {
			ID        string `json:"id"`
			Title     string `json:"title"`
			CreatedAt string `json:"created_at"`
			Settings  struct {
				IsPublic bool `json:"is_public"`
			} `json:"settings"`
		} `json:"items"`
	}

	resp, err := s.client.R().SetContext(ctx).
		SetResult(&result).
		SetQueryParam("page", strconv.Itoa(pageNum)).
		SetQueryParam("page_size", strconv.Itoa(limit)).
		Get("/forms")
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}

	page := &migrate.Page{}
	for _, f := range result.Items {
		labels := map[string]string{}
		if f.Settings.IsPublic {
			labels["public"] = "true"
		}
		page.Stubs = append(page.Stubs, migrate.EntityStub{
			Ref:    f.ID,
			Kind:   "form",
			Name:   f.Title,
			Labels: labels,
		})
	}
	if pageNum < result.PageCount {
		page.NextCursor = strconv.Itoa(pageNum + 1)
	}
	return page, nil
}

// Load fetches the full form definition. The payload is a *Form.
func (s *Source) Load(ctx context.Context, ref string) (*migrate.Entity, error) {
	var form Form
	resp, err := s.client.R().SetContext(ctx).
		SetResult(&form).
		Get("/forms/" + ref)
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}

	s.log.WithEntity(ref).Debugf("loaded form %q: %d fields, %d logic rules",
		form.Title, len(form.Fields), len(form.Logic))

	return &migrate.Entity{
		EntityStub: migrate.EntityStub{
			Ref:  form.ID,
			Kind: "form",
			Name: form.Title,
		},
		Payload: &form,
	}, nil
}
