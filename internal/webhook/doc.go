// Package webhook serves signed HTTP endpoints that trigger action runs.
//
// Each endpoint is bound in configuration to one action, a fixed set of
// parameters and a list of inventory hostnames. A request is accepted only if
// its body carries a valid HMAC-SHA256 signature in the configured header; the
// body itself is never interpreted, so a caller can trigger a run but cannot
// change what runs or where.
//
// Example configuration:
//
//	webhooks:
//	  listen: 127.0.0.1:8091
//	  endpoints:
//	    - path: /hooks/deploy-web
//	      action: run_playbook
//	      params:
//	        playbook_path: /srv/playbooks/deploy.yml
//	      servers: [web1, web2]
//	      secret: ${DEPLOY_HOOK_SECRET}
//	      signature_header: X-Hub-Signature-256
//	      max_body_size: 256KB
package webhook
