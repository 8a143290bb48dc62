// Package bpmnfile exposes a directory of .bpmn files as a migration
// source. Each process definition in each file is one entity.
package bpmnfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/flowport/flowport/pkg/bpmn"
	"github.com/flowport/flowport/pkg/migrate"
	"github.com/flowport/flowport/pkg/telemetry"
	"github.com/flowport/flowport/pkg/vendors"
)

// VendorName identifies this source in plans, runs, and the entity map.
const VendorName = "bpmn-files"

// Source walks a directory for .bpmn files.
type Source struct {
	dir string
	log *telemetry.Logger
}

// New builds a file source rooted at dir.
func New(dir string, log *telemetry.Logger) *Source {
	return &Source{dir: dir, log: log.NewComponentLogger("bpmnfile")}
}

// Register adds this vendor to a registry. The directory comes from
// ClientConfig.BaseURL, which the config layer sets to the local path.
func Register(r *vendors.Registry) {
	r.Register(vendors.Info{
		Name:        VendorName,
		Description: "BPMN 2.0 process definitions from local .bpmn files",
		EntityKind:  "process",
	}, func(cfg vendors.ClientConfig, log *telemetry.Logger) (migrate.Source, error) {
		if cfg.BaseURL == "" {
			return nil, migrate.NewPermanentError(
				"bpmn-files vendor requires a directory path", nil).
				WithCode(migrate.ErrCodeValidation)
		}
		return New(cfg.BaseURL, log), nil
	})
}

func (s *Source) Vendor() string { return VendorName }

// List enumerates every process of every .bpmn file under the root.
// The whole directory fits one page; the entity ref is
// "relative/path.bpmn#processID".
func (s *Source) List(ctx context.Context, cursor string, limit int) (*migrate.Page, error) {
	if cursor != "" {
		return &migrate.Page{}, nil
	}

	var files []string
	err := filepath.WalkDir(s.dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(strings.ToLower(d.Name()), ".bpmn") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, migrate.NewPermanentError("failed to scan directory", err).
			WithVendor(VendorName).WithCode(migrate.ErrCodeVendorFailed)
	}
	sort.Strings(files)

	page := &migrate.Page{}
	for _, path := range files {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		rel, relErr := filepath.Rel(s.dir, path)
		if relErr != nil {
			rel = path
		}
		processes, parseErr := s.parseFile(path)
		if parseErr != nil {
			s.log.WithError(parseErr).Warnf("skipping unparsable file %s", rel)
			continue
		}
		for _, p := range processes {
			name := p.Name
			if name == "" {
				name = p.ID
			}
			page.Stubs = append(page.Stubs, migrate.EntityStub{
				Ref:    rel + "#" + p.ID,
				Kind:   "process",
				Name:   name,
				Labels: map[string]string{"file": rel},
			})
		}
	}
	return page, nil
}

// Load parses the referenced process. The payload is a *bpmn.Process.
func (s *Source) Load(ctx context.Context, ref string) (*migrate.Entity, error) {
	rel, processID, ok := strings.Cut(ref, "#")
	if !ok {
		return nil, migrate.NewPermanentError(
			fmt.Sprintf("malformed entity ref %q", ref), nil).
			WithVendor(VendorName).WithCode(migrate.ErrCodeValidation)
	}

	processes, err := s.parseFile(filepath.Join(s.dir, rel))
	if err != nil {
		return nil, err
	}
	for _, p := range processes {
		if p.ID != processID {
			continue
		}
		name := p.Name
		if name == "" {
			name = p.ID
		}
		return &migrate.Entity{
			EntityStub: migrate.EntityStub{Ref: ref, Kind: "process", Name: name},
			Payload:    p,
		}, nil
	}
	return nil, migrate.NewPermanentError(
		fmt.Sprintf("process %s not found in %s", processID, rel), nil).
		WithVendor(VendorName).WithCode(migrate.ErrCodeVendorFailed)
}

func (s *Source) parseFile(path string) ([]*bpmn.Process, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, migrate.NewPermanentError("failed to read file", err).
			WithVendor(VendorName).WithCode(migrate.ErrCodeVendorFailed)
	}
	return bpmn.Parse(data)
}
