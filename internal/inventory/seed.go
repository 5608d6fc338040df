package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mattjoyce/ansible-actions/internal/config"
)

// Seed is the YAML document that populates the inventory tables.
type Seed struct {
	Connectors      []SeedConnector   `yaml:"connectors"`
	Environments    []SeedEnvironment `yaml:"environments"`
	Applications    []string          `yaml:"applications"`
	Servers         []SeedServer      `yaml:"servers"`
	Playbooks       []SeedPlaybook    `yaml:"playbooks"`
	InventoryGroups []SeedGroup       `yaml:"inventory_groups"`
}

type SeedConnector struct {
	Name           string `yaml:"name"`
	Kind           string `yaml:"kind"`
	Transport      string `yaml:"transport"`
	Address        string `yaml:"address"`
	Port           int    `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KnownHostsPath string `yaml:"known_hosts_path"`
	InventoryPath  string `yaml:"inventory_path"`
	WorkDir        string `yaml:"work_dir"`
}

// SeedEnvironment lists connector names in priority order; the first is the
// active one.
type SeedEnvironment struct {
	Name       string   `yaml:"name"`
	Connectors []string `yaml:"connectors"`
}

type SeedServer struct {
	Hostname     string   `yaml:"hostname"`
	IP           string   `yaml:"ip"`
	Environment  string   `yaml:"environment"`
	Applications []string `yaml:"applications"`
}

type SeedPlaybook struct {
	Name string `yaml:"name"`
	Path string `yaml:"path"`
}

// SeedGroup references its connector by name and playbooks by path.
type SeedGroup struct {
	Name         string   `yaml:"name"`
	Connector    string   `yaml:"connector"`
	Applications []string `yaml:"applications"`
	Playbooks    []string `yaml:"playbooks"`
}

// ImportResult summarises one Import call.
type ImportResult struct {
	Source  string `json:"source"`
	Digest  string `json:"digest"`
	Skipped bool   `json:"skipped"`

	Connectors   int `json:"connectors"`
	Environments int `json:"environments"`
	Servers      int `json:"servers"`
	Playbooks    int `json:"playbooks"`
	Groups       int `json:"groups"`
}

// ParseSeed decodes and validates a seed document.
func ParseSeed(data []byte) (*Seed, error) {
	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("failed to parse inventory seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

func (s *Seed) validate() error {
	connectors := map[string]bool{}
	for i := range s.Connectors {
		c := &s.Connectors[i]
		if c.Name == "" {
			return fmt.Errorf("connectors[%d]: name is required", i)
		}
		if c.Kind == "" {
			c.Kind = KindAnsible
		}
		if c.Transport == "" {
			c.Transport = TransportLocal
		}
		switch c.Transport {
		case TransportLocal:
		case TransportSSH:
			if c.Address == "" {
				return fmt.Errorf("connectors[%s]: address is required for ssh transport", c.Name)
			}
		default:
			return fmt.Errorf("connectors[%s]: unknown transport %q", c.Name, c.Transport)
		}
		if c.Port == 0 {
			c.Port = 22
		}
		connectors[c.Name] = true
	}

	envs := map[string]bool{}
	for i, e := range s.Environments {
		if e.Name == "" {
			return fmt.Errorf("environments[%d]: name is required", i)
		}
		for _, name := range e.Connectors {
			if !connectors[name] {
				return fmt.Errorf("environments[%s]: unknown connector %q", e.Name, name)
			}
		}
		envs[e.Name] = true
	}

	apps := map[string]bool{}
	for _, a := range s.Applications {
		apps[a] = true
	}
	for i, srv := range s.Servers {
		if srv.Hostname == "" {
			return fmt.Errorf("servers[%d]: hostname is required", i)
		}
		if !envs[srv.Environment] {
			return fmt.Errorf("servers[%s]: unknown environment %q", srv.Hostname, srv.Environment)
		}
		for _, a := range srv.Applications {
			if !apps[a] {
				return fmt.Errorf("servers[%s]: unknown application %q", srv.Hostname, a)
			}
		}
	}

	playbooks := map[string]bool{}
	for i := range s.Playbooks {
		p := &s.Playbooks[i]
		if p.Path == "" {
			return fmt.Errorf("playbooks[%d]: path is required", i)
		}
		if p.Name == "" {
			p.Name = p.Path
		}
		playbooks[p.Path] = true
	}

	for i, g := range s.InventoryGroups {
		if g.Name == "" {
			return fmt.Errorf("inventory_groups[%d]: name is required", i)
		}
		if g.Connector != "" && !connectors[g.Connector] {
			return fmt.Errorf("inventory_groups[%s]: unknown connector %q", g.Name, g.Connector)
		}
		for _, a := range g.Applications {
			if !apps[a] {
				return fmt.Errorf("inventory_groups[%s]: unknown application %q", g.Name, a)
			}
		}
		for _, p := range g.Playbooks {
			if !playbooks[p] {
				return fmt.Errorf("inventory_groups[%s]: unknown playbook %q", g.Name, p)
			}
		}
	}
	return nil
}

// Import loads a seed file into the inventory tables. Rows are upserted by
// their natural key and association lists are replaced. The file's BLAKE3
// digest is recorded; an unchanged file is skipped unless force is set.
func (s *Store) Import(ctx context.Context, path string, force bool) (ImportResult, error) {
	source, err := filepath.Abs(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("resolve seed path: %w", err)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read inventory seed: %w", err)
	}
	res := ImportResult{Source: source, Digest: config.HashBytes(data)}

	if !force {
		var prev string
		err := s.db.QueryRowContext(ctx, `SELECT digest FROM inventory_imports WHERE source = ?;`, source).Scan(&prev)
		switch {
		case err == nil && prev == res.Digest:
			res.Skipped = true
			return res, nil
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return ImportResult{}, fmt.Errorf("read import digest: %w", err)
		}
	}

	seed, err := ParseSeed(data)
	if err != nil {
		return ImportResult{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return ImportResult{}, fmt.Errorf("begin import: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := applySeed(ctx, tx, seed); err != nil {
		return ImportResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `
INSERT INTO inventory_imports(source, digest, imported_at) VALUES(?, ?, ?)
ON CONFLICT(source) DO UPDATE SET digest = excluded.digest, imported_at = excluded.imported_at;
`, source, res.Digest, time.Now().UTC().Format(time.RFC3339Nano)); err != nil {
		return ImportResult{}, fmt.Errorf("record import digest: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return ImportResult{}, fmt.Errorf("commit import: %w", err)
	}

	res.Connectors = len(seed.Connectors)
	res.Environments = len(seed.Environments)
	res.Servers = len(seed.Servers)
	res.Playbooks = len(seed.Playbooks)
	res.Groups = len(seed.InventoryGroups)
	return res, nil
}

func applySeed(ctx context.Context, tx *sql.Tx, seed *Seed) error {
	connIDs := map[string]int64{}
	for _, c := range seed.Connectors {
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO connector_confs(name, kind, transport, address, port, user, password,
  private_key_path, known_hosts_path, inventory_path, work_dir)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  kind = excluded.kind, transport = excluded.transport, address = excluded.address,
  port = excluded.port, user = excluded.user, password = excluded.password,
  private_key_path = excluded.private_key_path, known_hosts_path = excluded.known_hosts_path,
  inventory_path = excluded.inventory_path, work_dir = excluded.work_dir
RETURNING id;
`, c.Name, c.Kind, c.Transport, c.Address, c.Port, c.User, c.Password,
			c.PrivateKeyPath, c.KnownHostsPath, c.InventoryPath, c.WorkDir).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert connector %q: %w", c.Name, err)
		}
		connIDs[c.Name] = id
	}

	envIDs := map[string]int64{}
	for _, e := range seed.Environments {
		id, err := upsertName(ctx, tx, "environments", e.Name)
		if err != nil {
			return err
		}
		envIDs[e.Name] = id
		if _, err := tx.ExecContext(ctx, `DELETE FROM environment_connectors WHERE environment_id = ?;`, id); err != nil {
			return fmt.Errorf("clear environment connectors: %w", err)
		}
		for pos, name := range e.Connectors {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO environment_connectors(environment_id, conf_id, position) VALUES(?, ?, ?);
`, id, connIDs[name], pos); err != nil {
				return fmt.Errorf("link environment %q to connector %q: %w", e.Name, name, err)
			}
		}
	}

	appIDs := map[string]int64{}
	for _, a := range seed.Applications {
		id, err := upsertName(ctx, tx, "applications", a)
		if err != nil {
			return err
		}
		appIDs[a] = id
	}

	for _, srv := range seed.Servers {
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO servers(hostname, ip, environment_id) VALUES(?, ?, ?)
ON CONFLICT(hostname) DO UPDATE SET ip = excluded.ip, environment_id = excluded.environment_id
RETURNING id;
`, srv.Hostname, srv.IP, envIDs[srv.Environment]).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert server %q: %w", srv.Hostname, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM server_applications WHERE server_id = ?;`, id); err != nil {
			return fmt.Errorf("clear server applications: %w", err)
		}
		for _, a := range srv.Applications {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO server_applications(server_id, application_id) VALUES(?, ?);
`, id, appIDs[a]); err != nil {
				return fmt.Errorf("link server %q to application %q: %w", srv.Hostname, a, err)
			}
		}
	}

	pbIDs := map[string]int64{}
	for _, p := range seed.Playbooks {
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO playbooks(name, path) VALUES(?, ?)
ON CONFLICT(path) DO UPDATE SET name = excluded.name
RETURNING id;
`, p.Name, p.Path).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert playbook %q: %w", p.Path, err)
		}
		pbIDs[p.Path] = id
	}

	for _, g := range seed.InventoryGroups {
		var confID sql.NullInt64
		if g.Connector != "" {
			confID = sql.NullInt64{Int64: connIDs[g.Connector], Valid: true}
		}
		var id int64
		err := tx.QueryRowContext(ctx, `
INSERT INTO inventory_groups(name, conf_id) VALUES(?, ?)
ON CONFLICT(name) DO UPDATE SET conf_id = excluded.conf_id
RETURNING id;
`, g.Name, confID).Scan(&id)
		if err != nil {
			return fmt.Errorf("upsert inventory group %q: %w", g.Name, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_applications WHERE group_id = ?;`, id); err != nil {
			return fmt.Errorf("clear group applications: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_playbooks WHERE group_id = ?;`, id); err != nil {
			return fmt.Errorf("clear group playbooks: %w", err)
		}
		for _, a := range g.Applications {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO group_applications(group_id, application_id) VALUES(?, ?);
`, id, appIDs[a]); err != nil {
				return fmt.Errorf("link group %q to application %q: %w", g.Name, a, err)
			}
		}
		for _, p := range g.Playbooks {
			if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO group_playbooks(group_id, playbook_id) VALUES(?, ?);
`, id, pbIDs[p]); err != nil {
				return fmt.Errorf("link group %q to playbook %q: %w", g.Name, p, err)
			}
		}
	}
	return nil
}

// upsertName inserts a row keyed by a unique name column and returns its id.
// table is always a package constant.
func upsertName(ctx context.Context, tx *sql.Tx, table, name string) (int64, error) {
	var id int64
	q := `INSERT INTO ` + table + `(name) VALUES(?) ON CONFLICT(name) DO UPDATE SET name = excluded.name RETURNING id;`
	if err := tx.QueryRowContext(ctx, q, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert %s %q: %w", table, name, err)
	}
	return id, nil
}
