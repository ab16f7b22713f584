package worker

import "errors"

// Expected worker-level conditions. ErrLockUnavailable is a backoff
// condition, not a fault: the loop retries acquisition on the next tick.
var (
	ErrLockUnavailable     = errors.New("another worker instance holds the lock")
	ErrLockLost            = errors.New("worker lock is no longer held")
	ErrSendFailed          = errors.New("message send failed")
	ErrAlertDeliveryFailed = errors.New("alert delivery failed")
)
