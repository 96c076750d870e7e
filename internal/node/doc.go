// Package node is the runtime for MCP model nodes. A Node implementation
// declares its metadata and capabilities; a Runtime wraps it to discover the
// capabilities, validate inputs and outputs against JSON schemas, execute
// requests with timing and cost reporting, and answer health checks.
package node
