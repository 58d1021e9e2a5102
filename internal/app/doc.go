// Package app wires the subscription scraper together: configuration,
// logging and telemetry, the snapshot store, the exchange sources, the
// normalization engine, the services and the HTTP router.
//
// The binaries under cmd/ build one Application each. cmd/server serves
// the HTTP API, cmd/scraper drives poll cycles through the poller and
// cmd/export reads history straight from the store.
//
//	cfg, err := config.LoadFile(path)
//	a, err := app.NewApplication(ctx, cfg)
//	defer a.Close(ctx)
//
// Stop shuts the HTTP server down within Server.ShutdownTimeout and then
// closes the store and flushes telemetry.
package app
