// Package app wires the price store, analytics engine, import launcher,
// websocket hub and HTTP transport into one process and owns its lifecycle.
//
// # Initialization Flow
//
//	1. Load configuration from defaults, config.yaml and CRYPTO_* variables
//	2. Initialize logging and OpenTelemetry
//	3. Open the price store selected by storage.driver
//	4. Build the analytics engine, websocket hub and import launcher
//	5. Set up middleware, handlers and the HTTP server
//
// # Usage
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    return err
//	}
//	return application.Run()
//
// # Graceful Shutdown
//
// On SIGINT or SIGTERM the active import run is cancelled and its terminal
// status is pushed to websocket clients before the hub and HTTP server
// stop. Telemetry is flushed and the store closed last.
//
// The app does not call os.Exit() directly, allowing the main function to
// control the exit process.
package app
