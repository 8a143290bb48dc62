// Package asana fetches projects, sections, and tasks from the Asana
// REST API and exposes them as migratable entities.
package asana

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors"
)

// VendorName identifies this source in plans, runs, and the entity map.
const VendorName = "asana"

// DefaultBaseURL is the production Asana API root.
const DefaultBaseURL = "https://app.asana.com/api/1.0"

const projectFields = "name,notes,archived,color,owner.name,members.name,created_at,modified_at"

const taskFields = "name,notes,completed,assignee.name,due_on,due_at,memberships.section.gid," +
	"custom_fields.name,custom_fields.type,custom_fields.enum_options.name,dependencies.gid"

// Source lists and loads Asana projects.
type Source struct {
	client    *resty.Client
	workspace string
	log       *telemetry.Logger
}

// Option configures a Source.
type Option func(*Source)

// WithWorkspace restricts listing to a single workspace GID. Without it,
// the first workspace visible to the token is used.
func WithWorkspace(gid string) Option {
	return func(s *Source) { s.workspace = gid }
}

// New builds an Asana source.
func New(cfg vendors.ClientConfig, log *telemetry.Logger, opts ...Option) *Source {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	s := &Source{
		client: vendors.NewRestClient(cfg, log),
		log:    log.NewComponentLogger("asana"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds this vendor to a registry.
func Register(r *vendors.Registry) {
	r.Register(vendors.Info{
		Name:        VendorName,
		Description: "Asana projects with sections, tasks, and custom fields",
		EntityKind:  "project",
	}, func(cfg vendors.ClientConfig, log *telemetry.Logger) (migrate.Source, error) {
		return New(cfg, log), nil
	})
}

func (s *Source) Vendor() string { return VendorName }

// List pages through the projects of the configured workspace. Asana
// uses opaque offset cursors.
func (s *Source) List(ctx context.Context, cursor string, limit int) (*migrate.Page, error) {
	ws := s.workspace
	if ws == "" {
		var err error
		ws, err = s.defaultWorkspace(ctx)
		if err != nil {
			return nil, err
		}
		s.workspace = ws
	}

	var result struct {
		Data []struct {
			GID      string `json:"gid"`
			Name     string `json:"name"`
			Archived bool   `json:"archived"`
			Color    string `json:"color"`
		} `json:"data"`
		NextPage *struct {
			Offset string `json:"offset"`
		} `json:"next_page"`
	}

	req := s.client.R().SetContext(ctx).
		SetResult(&result).
		SetQueryParam("workspace", ws).
		SetQueryParam("limit", fmt.Sprintf("%d", limit)).
		SetQueryParam("opt_fields", "name,archived,color")
	if cursor != "" {
		req.SetQueryParam("offset", cursor)
	}

	resp, err := req.Get("/projects")
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}

	page := &migrate.Page{}
	for _, p := range result.Data {
		labels := map[string]string{}
		if p.Archived {
			labels["archived"] = "true"
		}
		if p.Color != "" {
			labels["color"] = p.Color
		}
		page.Stubs = append(page.Stubs, migrate.EntityStub{
			Ref:    p.GID,
			Kind:   "project",
			Name:   p.Name,
			Labels: labels,
		})
	}
	if result.NextPage != nil {
		page.NextCursor = result.NextPage.Offset
	}
	return page, nil
}

// Load fetches a project together with its sections and tasks. The
// payload is a *Project.
func (s *Source) Load(ctx context.Context, ref string) (*migrate.Entity, error) {
	project, err := s.fetchProject(ctx, ref)
	if err != nil {
		return nil, err
	}
	if project.Sections, err = s.fetchSections(ctx, ref); err != nil {
		return nil, err
	}
	if project.Tasks, err = s.fetchTasks(ctx, ref); err != nil {
		return nil, err
	}

	s.log.WithEntity(ref).Debugf("loaded project %q: %d sections, %d tasks",
		project.Name, len(project.Sections), len(project.Tasks))

	return &migrate.Entity{
		EntityStub: migrate.EntityStub{
			Ref:  project.GID,
			Kind: "project",
			Name: project.Name,
		},
		Payload: project,
	}, nil
}

func (s *Source) fetchProject(ctx context.Context, gid string) (*Project, error) {
	var result struct {
		Data Project `json:"data"`
	}
	resp, err := s.client.R().SetContext(ctx).
		SetResult(&result).
		SetQueryParam("opt_fields", projectFields).
		Get("/projects/" + gid)
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return nil, cerr
	}
	return &result.Data, nil
}

func (s *Source) fetchSections(ctx context.Context, projectGID string) ([]Section, error) {
	var sections []Section
	cursor := ""
	for {
		var result struct {
			Data     []Section `json:"data"`
			NextPage *struct {
				Offset string `json:"offset"`
			} `json:"next_page"`
		}
		req := s.client.R().SetContext(ctx).
			SetResult(&result).
			SetQueryParam("limit", "100")
		if cursor != "" {
			req.SetQueryParam("offset", cursor)
		}
		resp, err := req.Get("/projects/" + projectGID + "/sections")
		if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
			return nil, cerr
		}
		sections = append(sections, result.Data...)
		if result.NextPage == nil || result.NextPage.Offset == "" {
			return sections, nil
		}
		cursor = result.NextPage.Offset
	}
}

func (s *Source) fetchTasks(ctx context.Context, projectGID string) ([]Task, error) {
	var tasks []Task
	cursor := ""
	for {
		var result struct {
			Data     []Task `json:"data"`
			NextPage *struct {
				Offset string `json:"offset"`
			} `json:"next_page"`
		}
		req := s.client.R().SetContext(ctx).
			SetResult(&result).
			SetQueryParam("limit", "100").
			SetQueryParam("opt_fields", taskFields)
		if cursor != "" {
			req.SetQueryParam("offset", cursor)
		}
		resp, err := req.Get("/projects/" + projectGID + "/tasks")
		if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
			return nil, cerr
		}
		tasks = append(tasks, result.Data...)
		if result.NextPage == nil || result.NextPage.Offset == "" {
			return tasks, nil
		}
		cursor = result.NextPage.Offset
	}
}

// defaultWorkspace returns the first workspace visible to the token.
func (s *Source) defaultWorkspace(ctx context.Context) (string, error) {
	var result struct {
		Data []struct {
			GID  string `json:"gid"`
			Name string `json:"name"`
		} `json:"data"`
	}
	resp, err := s.client.R().SetContext(ctx).
		SetResult(&result).
		SetQueryParam("limit", "1").
		Get("/workspaces")
	if cerr := vendors.ClassifyResponse(VendorName, resp, err); cerr != nil {
		return "", cerr
	}
	if len(result.Data) == 0 {
		return "", migrate.NewPermanentError("token has no visible workspaces", nil).
			WithVendor(VendorName).WithCode(migrate.ErrCodeVendorFailed)
	}
	return result.Data[0].GID, nil
}
