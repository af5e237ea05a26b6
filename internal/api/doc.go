// Package api exposes the retrieval-augmented chat service over HTTP.
//
// The public surface is small: POST /chat answers a conversation, and
// GET /health and GET /ready serve container probes. Everything else is
// middleware: panic recovery, request IDs, request logging, and per-IP
// rate limiting.
package api
