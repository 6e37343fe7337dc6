// Package containers provides shared test containers for integration tests.
// All helpers are behind the integration build tag; run them with
// `go test -tags integration ./...`.
package containers
