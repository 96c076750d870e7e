// Package application provides application initialization and dependency wiring.
// It loads node metadata into storage, builds the node runtime with its
// metrics observer, assembles the documentation site, and mounts the API,
// the Prometheus endpoint and the site on one HTTP server, keeping the main
// package focused on CLI parsing and orchestration.
package application
