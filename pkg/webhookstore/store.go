// Package webhookstore is the postgres persistence layer for webhook
// subscriptions and delivery attempts.
package webhookstore

import "errors"

var ErrSubscriptionNotFound = errors.New("subscription not found")
