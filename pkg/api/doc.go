// Package api is the HTTP/JSON transport adapter for the orchestrator
// core (spec.md §6): a gin router exposing the worker CRUD surface,
// checkpoint listing, health, and a Server-Sent Events stream, backed
// by pkg/registry and pkg/storage. Grounded on the REST-router shape
// of yungbote-neurobridge-backend's internal/server package; the
// teacher's own pkg/api was gRPC/mTLS and has no direct descendant
// here (see DESIGN.md).
package api
