// Package upstreamstub hosts a deterministic HTTP fake of the VCF management
// API for integration tests. The stub simulates both token delivery paths
// (response header and JSON body), the three list envelope shapes, and forced
// error statuses, enabling end-to-end gateway tests without touching the
// network.
package upstreamstub
