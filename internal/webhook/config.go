package webhook

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mattjoyce/ansible-actions/internal/config"
	"github.com/mattjoyce/ansible-actions/internal/dispatch"
)

const defaultMaxBodySize int64 = 1 << 20

// FromGlobalConfig validates the webhooks section against the action
// defaults and returns the listener configuration. It returns nil, nil when
// webhooks are not configured.
func FromGlobalConfig(cfg *config.Config) (*Config, error) {
	if cfg.Webhooks == nil {
		return nil, nil
	}

	out := &Config{Listen: cfg.Webhooks.Listen}
	for i, ep := range cfg.Webhooks.Endpoints {
		var params json.RawMessage
		if len(ep.Params) > 0 {
			b, err := json.Marshal(ep.Params)
			if err != nil {
				return nil, fmt.Errorf("webhooks.endpoints[%d]: params: %w", i, err)
			}
			params = b
		}

		var err error
		switch ep.Action {
		case dispatch.ActionRunAdhocCommand:
			_, err = dispatch.DecodeAdhocParams(params, cfg.Actions.Adhoc)
		case dispatch.ActionRunPlaybook:
			_, err = dispatch.DecodePlaybookParams(params, cfg.Actions.Playbook)
		default:
			err = fmt.Errorf("unknown action %q", ep.Action)
		}
		if err != nil {
			return nil, fmt.Errorf("webhooks.endpoints[%d] (%s): %w", i, ep.Path, err)
		}

		maxBody, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return nil, fmt.Errorf("webhooks.endpoints[%d] (%s): max_body_size: %w", i, ep.Path, err)
		}

		out.Endpoints = append(out.Endpoints, EndpointConfig{
			Path:            ep.Path,
			Action:          ep.Action,
			Params:          params,
			Servers:         append([]string(nil), ep.Servers...),
			Secret:          ep.Secret,
			SignatureHeader: ep.SignatureHeader,
			MaxBodySize:     maxBody,
		})
	}
	return out, nil
}

// parseMaxBodySize accepts a byte count with an optional KB or MB suffix.
func parseMaxBodySize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return defaultMaxBodySize, nil
	}

	multiplier := int64(1)
	switch {
	case strings.HasSuffix(s, "MB"):
		multiplier, s = 1<<20, strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier, s = 1<<10, strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		s = strings.TrimSuffix(s, "B")
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return n * multiplier, nil
}
