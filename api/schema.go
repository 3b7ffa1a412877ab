// Package api carries the OpenAPI description of the HTTP interface.
package api

import _ "embed"

// Schema is openapi.yaml, embedded so the validator works without files on disk
//
//go:embed openapi.yaml
var Schema []byte
