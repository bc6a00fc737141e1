// Package config handles configuration loading for convai-gateway.
//
// # Overview
//
// Configuration starts from Default(), is overlaid by an optional YAML or TOML
// file, then by a handful of environment variables. The gateway runs with no
// file at all (FromEnv) for local development.
//
// # Environment Variable Expansion
//
// File values can reference environment variables:
//
//	elevenlabs:
//	  api_key: "${ELEVENLABS_API_KEY}"
//
// # Environment Overrides
//
// Applied after the file is read:
//
//	ELEVENLABS_API_KEY  elevenlabs.api_key
//	ENVIRONMENT         environment
//	PORT                port of server.http_addr
//	ALLOWED_ORIGINS     cors.allowed_origins (comma separated)
//	CONVAI_DATA_DIR     storage.data_dir
//
// # Configuration Sections
//
//	environment: "development"
//
//	server:
//	  http_addr: "0.0.0.0:8001"
//
//	elevenlabs:
//	  api_key: "${ELEVENLABS_API_KEY}"
//	  base_url: "https://api.elevenlabs.io/v1"
//	  timeout: "30s"
//
//	storage:
//	  backend: "json"          # json, sqlite
//	  data_dir: "data"
//	  sqlite_path: ""          # defaults to <data_dir>/convai.db
//
//	auth:
//	  jwt_secret: ""           # when set, bearer tokens are required
//	  allow_dev_identity: true # defaults to true only in development
//
//	cors:
//	  allowed_origins: ["http://localhost:3000"]
//
//	rate_limit:
//	  requests_per_second: 0   # 0 disables limiting
//	  burst: 20
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// A missing API key is not a validation error; the gateway logs a warning at
// startup and provider calls fail with a configuration error.
package config
