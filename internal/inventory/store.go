package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Store answers inventory queries from SQLite. Dispatch only reads through it;
// rows are written by Import.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

const connectorConfColumns = `c.id, c.name, c.kind, c.transport, c.address, c.port, c.user, c.password,
  c.private_key_path, c.known_hosts_path, c.inventory_path, c.work_dir`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnectorConf(row rowScanner) (ConnectorConf, error) {
	var c ConnectorConf
	err := row.Scan(&c.ID, &c.Name, &c.Kind, &c.Transport, &c.Address, &c.Port, &c.User, &c.Password,
		&c.PrivateKeyPath, &c.KnownHostsPath, &c.InventoryPath, &c.WorkDir)
	return c, err
}

// ServersForJob returns the servers attached to a job in attachment order.
func (s *Store) ServersForJob(ctx context.Context, jobID string) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT s.id, s.hostname, s.ip, s.environment_id
FROM job_servers js
JOIN servers s ON s.id = js.server_id
WHERE js.job_id = ?
ORDER BY js.position ASC;
`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query job servers: %w", err)
	}
	return collectServers(rows)
}

// Server returns a server by ID.
func (s *Store) Server(ctx context.Context, id int64) (*Server, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, hostname, ip, environment_id FROM servers WHERE id = ?;`, id)
	return scanServer(row, fmt.Sprintf("server %d", id))
}

// ServerByHostname returns a server by hostname.
func (s *Store) ServerByHostname(ctx context.Context, hostname string) (*Server, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, hostname, ip, environment_id FROM servers WHERE hostname = ?;`, hostname)
	return scanServer(row, fmt.Sprintf("server %q", hostname))
}

// ListServers returns every server ordered by hostname.
func (s *Store) ListServers(ctx context.Context) ([]Server, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, hostname, ip, environment_id FROM servers ORDER BY hostname;`)
	if err != nil {
		return nil, fmt.Errorf("query servers: %w", err)
	}
	return collectServers(rows)
}

func scanServer(row rowScanner, what string) (*Server, error) {
	var srv Server
	err := row.Scan(&srv.ID, &srv.Hostname, &srv.IP, &srv.EnvironmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return &srv, nil
}

func collectServers(rows *sql.Rows) ([]Server, error) {
	defer rows.Close()
	var out []Server
	for rows.Next() {
		var srv Server
		if err := rows.Scan(&srv.ID, &srv.Hostname, &srv.IP, &srv.EnvironmentID); err != nil {
			return nil, fmt.Errorf("scan server: %w", err)
		}
		out = append(out, srv)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate servers: %w", err)
	}
	return out, nil
}

// ConnectorConf returns a connector configuration by ID.
func (s *Store) ConnectorConf(ctx context.Context, id int64) (*ConnectorConf, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectorConfColumns+` FROM connector_confs c WHERE c.id = ?;`, id)
	c, err := scanConnectorConf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connector conf %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read connector conf %d: %w", id, err)
	}
	return &c, nil
}

// ConnectorConfByName returns a connector configuration by name.
func (s *Store) ConnectorConfByName(ctx context.Context, name string) (*ConnectorConf, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+connectorConfColumns+` FROM connector_confs c WHERE c.name = ?;`, name)
	c, err := scanConnectorConf(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("connector conf %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read connector conf %q: %w", name, err)
	}
	return &c, nil
}

// EnvironmentConnectorConfs returns the environment's connector
// configurations in priority order. The slice is empty, not an error, when
// none are attached.
func (s *Store) EnvironmentConnectorConfs(ctx context.Context, environmentID int64) ([]ConnectorConf, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+connectorConfColumns+`
FROM environment_connectors ec
JOIN connector_confs c ON c.id = ec.conf_id
WHERE ec.environment_id = ?
ORDER BY ec.position ASC, c.id ASC;
`, environmentID)
	if err != nil {
		return nil, fmt.Errorf("query environment connectors: %w", err)
	}
	defer rows.Close()

	var out []ConnectorConf
	for rows.Next() {
		c, err := scanConnectorConf(rows)
		if err != nil {
			return nil, fmt.Errorf("scan connector conf: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate environment connectors: %w", err)
	}
	return out, nil
}

// ServerApplications returns the applications associated with a server.
func (s *Store) ServerApplications(ctx context.Context, serverID int64) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT a.id, a.name
FROM server_applications sa
JOIN applications a ON a.id = sa.application_id
WHERE sa.server_id = ?
ORDER BY a.name;
`, serverID)
	if err != nil {
		return nil, fmt.Errorf("query server applications: %w", err)
	}
	defer rows.Close()

	var out []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return out, nil
}

// GroupsForServer returns every inventory group associated with any of the
// server's applications.
func (s *Store) GroupsForServer(ctx context.Context, serverID int64) ([]AnsibleGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT DISTINCT g.id, g.name, COALESCE(g.conf_id, 0)
FROM server_applications sa
JOIN group_applications ga ON ga.application_id = sa.application_id
JOIN inventory_groups g ON g.id = ga.group_id
WHERE sa.server_id = ?
ORDER BY g.name;
`, serverID)
	if err != nil {
		return nil, fmt.Errorf("query server groups: %w", err)
	}
	defer rows.Close()

	var out []AnsibleGroup
	for rows.Next() {
		var g AnsibleGroup
		if err := rows.Scan(&g.ID, &g.Name, &g.ConnectorConfID); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}
	return out, nil
}

// Group returns an inventory group by ID.
func (s *Store) Group(ctx context.Context, id int64) (*AnsibleGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(conf_id, 0) FROM inventory_groups WHERE id = ?;`, id)
	return scanGroup(row, fmt.Sprintf("inventory group %d", id))
}

// GroupByName returns an inventory group by name.
func (s *Store) GroupByName(ctx context.Context, name string) (*AnsibleGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, name, COALESCE(conf_id, 0) FROM inventory_groups WHERE name = ?;`, name)
	return scanGroup(row, fmt.Sprintf("inventory group %q", name))
}

func scanGroup(row rowScanner, what string) (*AnsibleGroup, error) {
	var g AnsibleGroup
	err := row.Scan(&g.ID, &g.Name, &g.ConnectorConfID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", what, err)
	}
	return &g, nil
}

// GroupPlaybooks returns the playbooks available to an inventory group.
func (s *Store) GroupPlaybooks(ctx context.Context, groupID int64) ([]Playbook, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT p.id, p.name, p.path
FROM group_playbooks gp
JOIN playbooks p ON p.id = gp.playbook_id
WHERE gp.group_id = ?
ORDER BY p.path;
`, groupID)
	if err != nil {
		return nil, fmt.Errorf("query group playbooks: %w", err)
	}
	defer rows.Close()

	var out []Playbook
	for rows.Next() {
		var p Playbook
		if err := rows.Scan(&p.ID, &p.Name, &p.Path); err != nil {
			return nil, fmt.Errorf("scan playbook: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate playbooks: %w", err)
	}
	return out, nil
}
