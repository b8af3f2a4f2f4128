package liveness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// fleetFile is the YAML layout of a fleet import file.
type fleetFile struct {
	Targets []fleetEntry `yaml:"targets"`
}

type fleetEntry struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Name    string `yaml:"name"`
	Active  *bool  `yaml:"active"`
}

// ImportResult counts the targets written by an import.
type ImportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
}

// targetWriter is the persistence an import needs.
type targetWriter interface {
	UpsertTarget(ctx context.Context, t Target) (created bool, err error)
}

// ParseFleet decodes and validates a fleet file. Entries default to active
// and an empty id defaults to the address. Every problem found is reported.
func ParseFleet(r io.Reader) ([]Target, error) {
	var f fleetFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode fleet file: %w", err)
	}

	var (
		targets = make([]Target, 0, len(f.Targets))
		seen    = make(map[string]int, len(f.Targets))
		errs    []error
	)
	for i, e := range f.Targets {
		addr, err := netip.ParseAddr(strings.TrimSpace(e.Address))
		if err != nil {
			errs = append(errs, fmt.Errorf("target %d: invalid address %q", i+1, e.Address))
			continue
		}
		t := Target{
			ID:      strings.TrimSpace(e.ID),
			Address: addr.String(),
			Name:    strings.TrimSpace(e.Name),
			Active:  e.Active == nil || *e.Active,
		}
		if t.ID == "" {
			t.ID = t.Address
		}
		if first, dup := seen[t.ID]; dup {
			errs = append(errs, fmt.Errorf("target %d: duplicate id %q (first at %d)", i+1, t.ID, first))
			continue
		}
		seen[t.ID] = i + 1
		targets = append(targets, t)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return targets, nil
}

// Import parses a fleet file and upserts every target.
func Import(ctx context.Context, w targetWriter, r io.Reader) (ImportResult, error) {
	targets, err := ParseFleet(r)
	if err != nil {
		return ImportResult{}, err
	}

	var res ImportResult
	for _, t := range targets {
		created, err := w.UpsertTarget(ctx, t)
		if err != nil {
			return res, err
		}
		if created {
			res.Created++
		} else {
			res.Updated++
		}
	}
	return res, nil
}

// ImportFile imports the fleet file at path.
func ImportFile(ctx context.Context, w targetWriter, path string) (ImportResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("open fleet file: %w", err)
	}
	defer f.Close()
	return Import(ctx, w, f)
}
