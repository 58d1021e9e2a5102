// Package shared holds helpers used by more than one package.
//
// The testutil subpackage provides a capturing slog handler and canned
// exchange tables shared by the dataprocessing, sources and services
// tests:
//
//	logger, logs := testutil.NewTestLogger(t)
//	svc := services.NewSubscriptionService(store, engine, sources, services.WithServiceLogger(logger))
//	...
//	testutil.AssertLogContains(t, logs, slog.LevelWarn, "unclassified")
//
// Nothing here may import a domain package other than pkg/contracts.
package shared
