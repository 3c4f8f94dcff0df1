// Package api defines the request and response messages of the splitledger
// Connect services. Messages are plain structs carried as JSON; the
// validate tags are checked by the service layer before any work is done.
//
// Amounts are integers in the smallest currency unit and timestamps are Unix
// seconds, as in the models package.
package api
