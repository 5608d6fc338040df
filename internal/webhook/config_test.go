package webhook

import (
	"strings"
	"testing"

	"github.com/mattjoyce/ansible-actions/internal/config"
)

func TestParseMaxBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "", want: defaultMaxBodySize},
		{in: "512", want: 512},
		{in: "512B", want: 512},
		{in: "256KB", want: 256 << 10},
		{in: "2mb", want: 2 << 20},
		{in: "0", wantErr: true},
		{in: "lots", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseMaxBodySize(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseMaxBodySize(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if !tt.wantErr && got != tt.want {
			t.Fatalf("parseMaxBodySize(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFromGlobalConfig(t *testing.T) {
	cfg := config.Defaults()
	if got, err := FromGlobalConfig(cfg); err != nil || got != nil {
		t.Fatalf("FromGlobalConfig(no webhooks) = %v, %v", got, err)
	}

	cfg.Actions.Adhoc.Module = "ping"
	cfg.Webhooks = &config.WebhooksConfig{
		Listen: "127.0.0.1:0",
		Endpoints: []config.WebhookEndpoint{
			{
				Path:            "/hooks/deploy",
				Action:          "run_playbook",
				Params:          map[string]any{"playbook_path": "/srv/deploy.yml"},
				Servers:         []string{"web1"},
				Secret:          "s3cret",
				SignatureHeader: "X-Hub-Signature-256",
				MaxBodySize:     "64KB",
			},
			{
				Path:            "/hooks/ping",
				Action:          "run_adhoc_command",
				Secret:          "s3cret",
				SignatureHeader: "X-Signature",
			},
		},
	}

	got, err := FromGlobalConfig(cfg)
	if err != nil {
		t.Fatalf("FromGlobalConfig: %v", err)
	}
	if len(got.Endpoints) != 2 {
		t.Fatalf("endpoints = %d, want 2", len(got.Endpoints))
	}
	deploy := got.Endpoints[0]
	if string(deploy.Params) != `{"playbook_path":"/srv/deploy.yml"}` {
		t.Fatalf("params = %s", deploy.Params)
	}
	if deploy.MaxBodySize != 64<<10 {
		t.Fatalf("max body = %d", deploy.MaxBodySize)
	}
	if got.Endpoints[1].Params != nil {
		t.Fatalf("ping params = %s, want nil so defaults apply", got.Endpoints[1].Params)
	}
}

func TestFromGlobalConfigRejects(t *testing.T) {
	tests := []struct {
		name string
		ep   config.WebhookEndpoint
		want string
	}{
		{
			name: "unknown action",
			ep:   config.WebhookEndpoint{Path: "/x", Action: "reboot", Secret: "s", SignatureHeader: "X-Sig"},
			want: `unknown action "reboot"`,
		},
		{
			name: "playbook without path",
			ep:   config.WebhookEndpoint{Path: "/x", Action: "run_playbook", Secret: "s", SignatureHeader: "X-Sig"},
			want: "playbook_path is required",
		},
		{
			name: "bad size",
			ep: config.WebhookEndpoint{Path: "/x", Action: "run_playbook", Secret: "s", SignatureHeader: "X-Sig",
				Params: map[string]any{"playbook_path": "a.yml"}, MaxBodySize: "huge"},
			want: "max_body_size",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Defaults()
			cfg.Webhooks = &config.WebhooksConfig{Listen: "127.0.0.1:0", Endpoints: []config.WebhookEndpoint{tt.ep}}
			_, err := FromGlobalConfig(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error = %v, want containing %q", err, tt.want)
			}
		})
	}
}
