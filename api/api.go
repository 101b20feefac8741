// Package api embeds the OpenAPI description of the shop query API.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
