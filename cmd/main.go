// cmd/main.go
package main

import (
	"dashboard-auth/app"
)

// @title           Dashboard Auth API
// @version         1.0
// @description     Credential and session service for the operations dashboard.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	app.Run()
}
