// Package internal contains the implementation packages of assetpipe.
//
// # Package Organization
//
// The internal packages are organized by functional domain:
//
//   - assets: asset files and paths, the file graph, sets and aliases,
//     dependency ordering, combinations, policies and tag plans
//   - content: content sources, transforms and the plan cache
//   - caching: rendered content cache, cache headers and ETags
//   - http: the asset writer, the response adapter and the router
//   - scanner: discovery of asset files under each package root
//   - services: bootstrap of a complete pipeline, package manifests and
//     project initialization
//   - server: the assembled http server with reload on change
//   - watcher: debounced file system monitoring
//   - livereload: browser reload notifications over WebSocket
//   - monitoring: Prometheus metrics and health checks
//   - middleware: request id, logging and metrics middleware
//   - config, logging, errors, version: ambient support
//
// # Request Flow
//
// A request under /_content/ is parsed into an asset path, resolved to a
// content source by the plan cache, rendered once per source and written
// with an ETag and, outside development mode, cache headers.
//
// # Lifecycle
//
// Bootstrap scans the package roots, builds the file graph, applies the
// declared sets, aliases, dependencies and combinations, compiles every set
// and activates the combination policies. A set that fails to compile is
// logged and skipped; the others are served. In development mode a file
// change either resets the caches or rebuilds the pipeline and swaps it in.
package internal
