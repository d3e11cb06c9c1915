// Package http implements the HTTP handlers of the Declarify client.
//
// Handlers stay thin: they bind and validate the request, call a service
// (the Central Hub client, the license gate, the task service or the
// reminder scheduler) and render the result with go-chi/render. Failures
// go through errors.ErrorHandler so every JSON error is an RFC 7807 problem.
//
// Routes are mounted by internal/app:
//
//	GET  /api/health, /api/health/live, /api/health/ready
//	GET  /api/license/status
//	POST /api/license/activate
//	GET  /api/credits
//	POST /api/credits/consume
//	GET  /api/tasks, /api/tasks/{id}
//	POST /api/tasks/bulk, /api/tasks/{id}/submit
//	GET  /api/reminders/status
//	POST /api/reminders/run
//	GET  /, /dashboard, /license/activate
package http
