// Package platform holds the notification facilities alerts are delivered
// through. Each subpackage implements alerts.Platform.
package platform
