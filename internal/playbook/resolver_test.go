package playbook

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/ansible-actions/internal/inventory"
	"github.com/mattjoyce/ansible-actions/internal/storage"
)

type fakeCatalog struct {
	serverGroups map[int64][]inventory.AnsibleGroup
	groupBooks   map[int64][]inventory.Playbook
	err          error
}

func (f *fakeCatalog) GroupsForServer(_ context.Context, id int64) ([]inventory.AnsibleGroup, error) {
	return f.serverGroups[id], f.err
}

func (f *fakeCatalog) GroupPlaybooks(_ context.Context, id int64) ([]inventory.Playbook, error) {
	return f.groupBooks[id], nil
}

var (
	pbA = inventory.Playbook{ID: 1, Name: "A", Path: "a.yml"}
	pbB = inventory.Playbook{ID: 2, Name: "B", Path: "b.yml"}
	pbC = inventory.Playbook{ID: 3, Name: "C", Path: "c.yml"}
)

// Servers 1..3 have playbook sets {A,B}, {B,C}, {B}. Group 10 carries A and
// B, group 20 carries B and C, group 30 carries B again.
func threeServerCatalog() *fakeCatalog {
	return &fakeCatalog{
		serverGroups: map[int64][]inventory.AnsibleGroup{
			1: {{ID: 10, Name: "g10"}},
			2: {{ID: 20, Name: "g20"}},
			3: {{ID: 30, Name: "g30"}},
		},
		groupBooks: map[int64][]inventory.Playbook{
			10: {pbA, pbB},
			20: {pbB, pbC},
			30: {pbB},
		},
	}
}

func TestOptions_IntersectionAcrossServers(t *testing.T) {
	r := NewResolver(threeServerCatalog())
	got, err := r.OptionsForPlaybookPath(context.Background(), Selection{ServerIDs: []int64{1, 2, 3}})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Value: "b.yml", Label: "B"}}, got)
}

func TestOptions_NothingSelected(t *testing.T) {
	r := NewResolver(threeServerCatalog())
	got, err := r.OptionsForPlaybookPath(context.Background(), Selection{})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Value: "---", Label: "No playbooks available for the selected server(s)"}}, got)
}

func TestOptions_EmptyIntersectionGivesSentinel(t *testing.T) {
	r := NewResolver(threeServerCatalog())
	got, err := r.OptionsForPlaybookPath(context.Background(), Selection{ServerIDs: []int64{1, 99}})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{Value: NoneValue, Label: NoneLabel}}, got)
}

func TestOptions_Priority(t *testing.T) {
	r := NewResolver(threeServerCatalog())
	ctx := context.Background()

	// Single server, sorted by path.
	got, err := r.OptionsForPlaybookPath(ctx, Selection{ServerID: 2, GroupID: 10})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{"b.yml", "B"}, {"c.yml", "C"}}, got)

	// Server list wins over the single server.
	got, err = r.OptionsForPlaybookPath(ctx, Selection{ServerIDs: []int64{1}, ServerID: 2})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{"a.yml", "A"}, {"b.yml", "B"}}, got)

	// Group only.
	got, err = r.OptionsForPlaybookPath(ctx, Selection{GroupID: 20})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{"b.yml", "B"}, {"c.yml", "C"}}, got)
}

func TestPlaybooksForServer_UnionCollapsesDuplicates(t *testing.T) {
	cat := &fakeCatalog{
		serverGroups: map[int64][]inventory.AnsibleGroup{1: {{ID: 10}, {ID: 20}}},
		groupBooks:   map[int64][]inventory.Playbook{10: {pbA, pbB}, 20: {pbB, pbC}},
	}
	set, err := NewResolver(cat).PlaybooksForServer(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, []inventory.Playbook{pbA, pbB, pbC}, set.Sorted())
}

func TestPlaybooksForServer_Error(t *testing.T) {
	boom := errors.New("boom")
	_, err := NewResolver(&fakeCatalog{err: boom}).OptionsForPlaybookPath(context.Background(), Selection{ServerID: 1})
	assert.ErrorIs(t, err, boom)
}

func TestSet_SortedTieBreaksOnName(t *testing.T) {
	s := Set{1: {ID: 1, Name: "z", Path: "same.yml"}, 2: {ID: 2, Name: "a", Path: "same.yml"}}
	sorted := s.Sorted()
	assert.Equal(t, "a", sorted[0].Name)
}

func TestResolver_WithInventoryStore(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	seed := `
environments:
  - name: prod
applications: [web, db]
servers:
  - {hostname: web1, ip: 10.0.0.1, environment: prod, applications: [web]}
  - {hostname: db1, ip: 10.0.0.2, environment: prod, applications: [db, web]}
playbooks:
  - {name: Deploy, path: deploy.yml}
  - {name: Backup, path: backup.yml}
inventory_groups:
  - {name: webservers, applications: [web], playbooks: [deploy.yml]}
  - {name: dbservers, applications: [db], playbooks: [backup.yml]}
`
	path := filepath.Join(t.TempDir(), "inventory.yaml")
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	store := inventory.NewStore(db)
	_, err = store.Import(ctx, path, false)
	require.NoError(t, err)

	web1, err := store.ServerByHostname(ctx, "web1")
	require.NoError(t, err)
	db1, err := store.ServerByHostname(ctx, "db1")
	require.NoError(t, err)

	r := NewResolver(store)
	got, err := r.OptionsForPlaybookPath(ctx, Selection{ServerID: db1.ID})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{"backup.yml", "Backup"}, {"deploy.yml", "Deploy"}}, got)

	got, err = r.OptionsForPlaybookPath(ctx, Selection{ServerIDs: []int64{web1.ID, db1.ID}})
	require.NoError(t, err)
	assert.Equal(t, []Choice{{"deploy.yml", "Deploy"}}, got)
}
