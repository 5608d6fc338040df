// Package playbook works out which playbooks may be offered for a selection
// of servers or an inventory group.
package playbook

import (
	"context"
	"fmt"
	"sort"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
)

// NoneValue and NoneLabel form the single choice returned when nothing is
// available.
const (
	NoneValue = "---"
	NoneLabel = "No playbooks available for the selected server(s)"
)

// Catalog is the read-only inventory surface the resolver needs.
type Catalog interface {
	GroupsForServer(ctx context.Context, serverID int64) ([]inventory.AnsibleGroup, error)
	GroupPlaybooks(ctx context.Context, groupID int64) ([]inventory.Playbook, error)
}

// Set holds playbooks keyed by ID.
type Set map[int64]inventory.Playbook

// Intersect returns the playbooks present in both sets.
func (s Set) Intersect(other Set) Set {
	out := Set{}
	for id, p := range s {
		if _, ok := other[id]; ok {
			out[id] = p
		}
	}
	return out
}

// Sorted returns the playbooks ordered by path, then name.
func (s Set) Sorted() []inventory.Playbook {
	out := make([]inventory.Playbook, 0, len(s))
	for _, p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Choice is one (value, label) option for a form field.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Selection is what the form currently has selected. ServerIDs wins over
// ServerID, which wins over GroupID.
type Selection struct {
	ServerIDs []int64
	ServerID  int64
	GroupID   int64
}

type Resolver struct {
	catalog Catalog
}

func NewResolver(c Catalog) *Resolver {
	return &Resolver{catalog: c}
}

// PlaybooksForServer unions the playbooks of every group linked to any of
// the server's applications.
func (r *Resolver) PlaybooksForServer(ctx context.Context, serverID int64) (Set, error) {
	groups, err := r.catalog.GroupsForServer(ctx, serverID)
	if err != nil {
		return nil, fmt.Errorf("groups for server %d: %w", serverID, err)
	}
	out := Set{}
	for _, g := range groups {
		pbs, err := r.catalog.GroupPlaybooks(ctx, g.ID)
		if err != nil {
			return nil, fmt.Errorf("playbooks for group %q: %w", g.Name, err)
		}
		for _, p := range pbs {
			out[p.ID] = p
		}
	}
	return out, nil
}

// Available returns the playbooks for sel: the intersection across
// ServerIDs, one server's playbooks, or a group's playbooks.
func (r *Resolver) Available(ctx context.Context, sel Selection) (Set, error) {
	switch {
	case len(sel.ServerIDs) > 0:
		var acc Set
		for i, id := range sel.ServerIDs {
			pbs, err := r.PlaybooksForServer(ctx, id)
			if err != nil {
				return nil, err
			}
			if i == 0 {
				acc = pbs
			} else {
				acc = acc.Intersect(pbs)
			}
			if len(acc) == 0 {
				break
			}
		}
		return acc, nil
	case sel.ServerID != 0:
		return r.PlaybooksForServer(ctx, sel.ServerID)
	case sel.GroupID != 0:
		pbs, err := r.catalog.GroupPlaybooks(ctx, sel.GroupID)
		if err != nil {
			return nil, fmt.Errorf("playbooks for group %d: %w", sel.GroupID, err)
		}
		out := Set{}
		for _, p := range pbs {
			out[p.ID] = p
		}
		return out, nil
	default:
		return Set{}, nil
	}
}

// OptionsForPlaybookPath returns (path, name) choices for sel, or the single
// "no playbooks" choice when none are available.
func (r *Resolver) OptionsForPlaybookPath(ctx context.Context, sel Selection) ([]Choice, error) {
	set, err := r.Available(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(set) == 0 {
		return []Choice{{Value: NoneValue, Label: NoneLabel}}, nil
	}
	pbs := set.Sorted()
	out := make([]Choice, 0, len(pbs))
	for _, p := range pbs {
		out = append(out, Choice{Value: p.Path, Label: p.Name})
	}
	return out, nil
}
