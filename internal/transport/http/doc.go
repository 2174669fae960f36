// Package http implements the HTTP handlers of the crypto recommendation
// service. Handlers stay thin: they parse and validate query parameters,
// call a service interface and render the result with go-chi/render.
//
// # Routes
//
//	/api/crypto/list                         all observations, or one symbol's
//	/api/crypto/normalized/all               normalized spread per symbol
//	/api/crypto/normalized/top               highest spread on one UTC day
//	/api/crypto/statistics[/{symbol}]        oldest/newest/min/max per symbol
//	/api/crypto/range-statistics[/{symbol}]  the same over an explicit window
//	/api/batch/refresh                       launch an import run
//	/api/batch/lastBatchExecStatus           the latest run
//	/api/batch/runs                          run history
//
// An empty result is answered with 204 No Content where the contract calls
// for it. Every error is rendered as an RFC 7807 problem document by
// errors.ErrorHandler.
package http
