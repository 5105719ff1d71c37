// Package discovery implements mDNS/DNS-SD discovery for devices that
// expose the control panel API.
//
// Devices advertise the _mashpanel._tcp service in the local domain.
// The instance name is user-facing (usually "<model>-<serial>"), and the
// TXT record carries what a panel needs before its first request:
//
//	serial  device serial number (required)
//	model   model name (required)
//	api     API path prefix, e.g. /api/v1 (required)
//	auth    "none" or "bearer" (optional, default "none")
//
// Browsing aggregates answers per instance: addresses seen on several
// interfaces are merged into one Service, and a service whose last address
// is withdrawn is forgotten.
package discovery
