// Package alerts owns the set of local alert notifications: generic
// reminders plus weather, seismic, flood and NDMA hazard alerts.
//
// Callers schedule, enumerate, mark read, cancel and clear notifications
// through Service. Scheduling calls return once the notification is stored
// and its trigger armed; delivery happens later on a scheduler goroutine,
// through the configured Platform.
//
// The store is the source of truth. A trigger whose notification has been
// cancelled, here or by another process sharing the store, does nothing.
package alerts
