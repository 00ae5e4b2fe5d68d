// Package client is a thin HTTP client for strategosd's REST API
// (pkg/api), for CLI subcommands that operate against a running
// orchestrator rather than embedding one. Grounded on the teacher's
// pkg/client (one method per RPC, context timeout per call), adapted
// from a gRPC/mTLS client to net/http since pkg/api is REST/JSON.
package client
