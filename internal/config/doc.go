// Package config loads the client configuration.
//
// Values are layered in increasing order of precedence:
//
//	1. Default()
//	2. a YAML file (config.yaml, or the path in DECLARIFY_CONFIG_FILE)
//	3. environment variables prefixed with DECLARIFY_
//
// Environment names follow the struct nesting, for example:
//
//	DECLARIFY_CENTRAL_HUB_BASE_URL=https://hub.example.com
//	DECLARIFY_CENTRAL_HUB_COMPANY_CODE=1001
//	DECLARIFY_SCHEDULER_HOUR=6
//	DECLARIFY_STORAGE_DRIVER=sqlite
//	DECLARIFY_LOGGING_LEVEL=debug
//
// Load validates the result and fails when the Central Hub base URL is
// missing, so a misconfigured client never starts serving.
package config
