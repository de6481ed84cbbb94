// SPDX-License-Identifier: BSL-1.1

package eventbus

// Topic names for events published across the engine, consumed by the
// WebSocket push handler and the webhook dispatcher. Nothing publishes
// TopicWaitlistAccepted or TopicResourceStatusChange; resource reopen
// and auto-reset publish "resource.reopened", which has no constant.
const (
	TopicReservationCreated   = "reservation.created"
	TopicReservationCancelled = "reservation.cancelled"
	TopicReservationExpired   = "reservation.expired"
	TopicWaitlistJoined       = "waitlist.joined"
	TopicWaitlistPromoted     = "waitlist.promoted"
	TopicWaitlistAccepted     = "waitlist.accepted"
	TopicWaitlistExpired      = "waitlist.expired"
	TopicWaitlistLeft         = "waitlist.left"
	TopicNotificationCreated  = "notification.created"
	TopicResourceStatusChange = "resource.status_changed"
	TopicBackgroundAlert      = "background.alert"
)
