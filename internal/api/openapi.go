package api

import (
	"net/http"

	"github.com/mattjoyce/ansible-actions/internal/dispatch"
)

// buildOpenAPIDoc returns an OpenAPI 3.1 document for the action endpoints.
func buildOpenAPIDoc() map[string]any {
	timeout := map[string]any{
		"oneOf":       []any{map[string]any{"type": "string"}, map[string]any{"type": "integer"}},
		"description": "Seconds; empty means 120.",
	}
	schemas := map[string]map[string]any{
		dispatch.ActionRunAdhocCommand: {
			"type": "object",
			"properties": map[string]any{
				"module":           map[string]any{"type": "string"},
				"module_arguments": map[string]any{"type": "string"},
				"timeout":          timeout,
				"ansibleconf_id":   map[string]any{"type": "integer"},
				"inventory_group":  map[string]any{"type": "string", "default": "all"},
			},
		},
		dispatch.ActionRunPlaybook: {
			"type": "object",
			"properties": map[string]any{
				"playbook_path":  map[string]any{"type": "string"},
				"timeout":        timeout,
				"ansibleconf_id": map[string]any{"type": "integer"},
				"limit":          map[string]any{"type": "string", "default": "all"},
			},
		},
	}

	paths := map[string]any{}
	for action, params := range schemas {
		paths["/actions/"+action] = map[string]any{
			"post": map[string]any{
				"operationId": action,
				"tags":        []string{"actions"},
				"requestBody": map[string]any{
					"required": false,
					"content": map[string]any{
						"application/json": map[string]any{
							"schema": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"server_ids": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
									"params":     params,
								},
							},
						},
					},
				},
				"responses": map[string]any{
					"202": map[string]any{"description": "Job queued"},
					"400": map[string]any{"description": "Bad request"},
					"403": map[string]any{"description": "Insufficient scope"},
				},
				"security": []any{map[string]any{"BearerAuth": []string{}}},
			},
		}
	}

	return map[string]any{
		"openapi": "3.1.0",
		"info": map[string]any{
			"title":   "ansible-actions",
			"version": "1.0",
		},
		"paths": paths,
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"BearerAuth": map[string]any{
					"type":   "http",
					"scheme": "bearer",
				},
			},
		},
	}
}

// handleOpenAPI handles GET /openapi.json (no auth).
func (s *Server) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, buildOpenAPIDoc())
}
