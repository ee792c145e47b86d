// Package handlers contains HTTP handler interfaces, implementations, and middleware.
//
// # Health Checks
//
// The HealthChecker interface aggregates named probes that run in parallel
// with a per-probe timeout:
//
//	checker := handlers.NewCompositeHealthChecker("v1.0.0")
//	checker.AddCheck("database", handlers.NewDatabaseCheck(db))
//	checker.AddCheck("cache", handlers.NewCacheCheck(cache))
//	checker.AddCheck("roster", handlers.NewRosterCheck(rosterClient))
//
//	status := checker.Check(ctx)
//
// # Admin Authentication
//
// Admin endpoints are protected by API keys. Configuration carries bcrypt
// hashes rather than plaintext keys; use HashKey once to produce a hash:
//
//	hash, _ := handlers.HashKey("my-admin-key")
//	auth := handlers.NewAPIKeyAuth("X-API-Key", []string{hash})
//	protected := auth.Middleware(myHandler)
//
// # Middleware
//
// Middleware components compose with ChainHandler, first middleware
// outermost. The admin routes stack auth, cache suppression and a body
// size limit:
//
//	handler := handlers.ChainHandler(
//	    myHandler,
//	    auth.Middleware,
//	    handlers.NoCacheMiddleware,
//	    handlers.RequestSizeLimitMiddleware(10<<20),
//	)
package handlers
