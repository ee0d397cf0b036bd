// Package config loads the notebook client configuration.
//
// Configuration is YAML with ${VAR} expansion. The environment field picks
// where the kernel and backend live:
//   - local: kernel at ws://127.0.0.1:8000, backend at http://127.0.0.1:8000
//   - hosted: kernel.host and api.base_url are required, TLS schemes by default
package config
