// Package app wires the Declarify client together and runs it.
//
// New builds every component from a loaded configuration: the tenant holder,
// the Central Hub client, the license gate with its admission filter, the
// task store and service, and the daily reminder scheduler. Run serves HTTP
// and runs the scheduler until its context is cancelled, then shuts down the
// server, closes the store and flushes telemetry.
//
// Middleware order on gated routes:
//
//	RequestID → RealIP → OTel → StructuredLogger → Recoverer →
//	SecurityHeaders → RateLimiter → Timeout → AdmissionFilter
//
// Typical use from main:
//
//	cfg, err := config.Load()
//	...
//	application, err := app.New(cfg, logger)
//	...
//	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
//	defer stop()
//	err = application.Run(ctx)
package app
