// Package inventory is the read-only query surface over servers, environments,
// connector configurations, applications, inventory groups and playbooks.
package inventory

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Connector kinds and transports.
const (
	KindAnsible = "ansible"

	TransportLocal = "local"
	TransportSSH   = "ssh"
)

// Server is a managed host.
type Server struct {
	ID            int64  `json:"id"`
	Hostname      string `json:"hostname"`
	IP            string `json:"ip"`
	EnvironmentID int64  `json:"environment_id"`
}

// Environment groups servers that share connector configurations.
type Environment struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ConnectorConf describes how to reach a configuration-management control
// point. Kind selects the connector implementation.
type ConnectorConf struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Transport      string `json:"transport"`
	Address        string `json:"address,omitempty"`
	Port           int    `json:"port,omitempty"`
	User           string `json:"user,omitempty"`
	Password       string `json:"-"`
	PrivateKeyPath string `json:"private_key_path,omitempty"`
	KnownHostsPath string `json:"known_hosts_path,omitempty"`
	InventoryPath  string `json:"inventory_path,omitempty"`
	WorkDir        string `json:"work_dir,omitempty"`
}

// Application is something deployed on servers; it links servers to
// inventory groups.
type Application struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// AnsibleGroup is an inventory group with the playbooks made available to it.
type AnsibleGroup struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	ConnectorConfID int64  `json:"connector_conf_id,omitempty"`
}

// Playbook is identified by its path.
type Playbook struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}
