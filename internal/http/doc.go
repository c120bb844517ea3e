// Package http exposes the reservation service over a JSON REST API.
//
// Endpoints:
//
//	POST   /login                       authenticate and issue a session token
//	POST   /logout                      revoke the current session
//	GET    /devices                     list registered microwaves
//	POST   /devices                     register a microwave (admin)
//	GET    /devices/{id}                fetch a microwave
//	PUT    /devices/{id}                update a microwave (admin)
//	DELETE /devices/{id}                remove a microwave (admin)
//	PUT    /devices/{id}/maintenance    toggle maintenance mode (admin)
//	POST   /devices/{id}/reservations   reserve a microwave
//	DELETE /devices/{id}/reservations   cancel the active reservation
//	GET    /reservations                list the caller's reservation history
//	GET    /users                       list accounts (admin)
//	POST   /users                       create an account (admin)
//	PUT    /users/{id}                  update an account (admin)
//	DELETE /users/{id}                  delete an account (admin)
//	GET    /stats                       fleet dashboard counters
//	GET    /reports/usage               download the usage workbook (admin)
//	GET    /metrics                     Prometheus metrics
//	GET    /healthz                     liveness and storage check
//
// Session tokens are accepted from the Authorization header (Bearer scheme),
// the X-Session-Token header, or the session_token cookie.
package http
