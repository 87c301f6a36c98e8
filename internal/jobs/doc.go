// Package jobs implements background work that runs beside the HTTP server.
//
// Each job owns a ticker loop started with Start and stopped with Stop, and
// exposes RunOnce for tests and manual triggers:
//
//	purger := jobs.NewFilePurger(fileService, jobs.FilePurgerConfig{
//	    Interval:  time.Hour,
//	    Retention: 30 * 24 * time.Hour,
//	})
//	purger.Start()
//	defer purger.Stop()
//
// Jobs log errors but don't crash the application; the next tick retries.
package jobs
