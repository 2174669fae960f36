// Package services sits between the HTTP handlers and the domain packages.
//
// BatchService turns a refresh request into an import run on the
// operations.Launcher, building a fresh importer job per run, and answers
// status queries from the launcher's run history. HealthService backs the
// health endpoints; readiness pings the price store.
package services
