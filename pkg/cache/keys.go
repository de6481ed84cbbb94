// SPDX-License-Identifier: BSL-1.1

package cache

import "fmt"

// Cache key prefixes
const (
	PrefixResource     = "resource"
	PrefixAvailability = "availability"
)

// Resource cache keys
func ResourceByIDKey(id string) string {
	return fmt.Sprintf("%s:id:%s", PrefixResource, id)
}

func ResourceListKey() string {
	return fmt.Sprintf("%s:list", PrefixResource)
}

func BusinessHoursKey(resourceID string) string {
	return fmt.Sprintf("%s:hours:%s", PrefixResource, resourceID)
}

// Availability cache keys
func ScheduleKey(resourceID, from, to string) string {
	return fmt.Sprintf("%s:schedule:%s:%s:%s", PrefixAvailability, resourceID, from, to)
}

func NextAvailableKey(resourceID string, durationMinutes int) string {
	return fmt.Sprintf("%s:next:%s:%d", PrefixAvailability, resourceID, durationMinutes)
}

func SummaryKey(resourceID, date string) string {
	return fmt.Sprintf("%s:summary:%s:%s", PrefixAvailability, resourceID, date)
}

// ResourceCacheKeys returns the keys to invalidate when a resource's
// own attributes (not its reservations) change.
func ResourceCacheKeys(resourceID string) []string {
	return []string{
		ResourceByIDKey(resourceID),
		ResourceListKey(),
		BusinessHoursKey(resourceID),
	}
}

// AvailabilityPrefix returns the scan pattern matching every
// availability cache key built above for a resource.
func AvailabilityPrefix(resourceID string) string {
	return fmt.Sprintf("%s:*:%s:*", PrefixAvailability, resourceID)
}
