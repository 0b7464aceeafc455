// Package app composes the console API from its stores and services.
//
//	internal/app/
//	├── application.go      # Stores, Options and service wiring
//	├── domain/             # account, app, recommend and knowledge models
//	├── storage/            # store interfaces, memory and postgres backends
//	├── services/           # accounts, directory, recommend, setup
//	├── httpapi/            # mux routes and response DTOs
//	├── metrics/            # prometheus collectors
//	└── runtime/            # process wiring: config, database, HTTP server
//
// Business rules live in services; httpapi only parses requests, calls a
// service and maps the result or error to a response.
package app
