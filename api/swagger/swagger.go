// Package swagger embeds the OpenAPI document of the REST API.
package swagger

import _ "embed"

// UserServiceJSON is the Swagger 2.0 document served at /swagger/doc.json.
//
//go:embed user.swagger.json
var UserServiceJSON []byte
