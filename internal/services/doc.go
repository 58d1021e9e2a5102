// Package services implements the business logic between the exchange
// sources, the normalization engine and the snapshot store.
//
// # Available Services
//
//	- SubscriptionService: runs poll cycles and serves stored snapshots
//	- HealthService: reports store reachability and build information
//
// # Poll Cycle
//
// PollOnce discovers the offerings open for bidding on every source,
// fetches their category tables with bounded concurrency, normalizes them
// and saves one snapshot per offering:
//
//	svc := services.NewSubscriptionService(store, engine, sources,
//	    services.WithConcurrency(4),
//	    services.WithServiceLogger(logger),
//	)
//	report, err := svc.PollOnce(ctx)
//
// A failure on one offering is recorded in the CycleReport and never
// aborts the cycle. ErrNoSources is returned only when no exchange could
// list its offerings at all. Offerings that dropped off a successfully
// listed exchange are archived at the end of the cycle.
//
// # Error Handling
//
// Read operations pass storage.ErrNotFound through unchanged so handlers
// can map it to 404. ErrInvalidLimit marks a negative history limit.
package services
