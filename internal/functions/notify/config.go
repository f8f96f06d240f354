// internal/functions/notify/config.go
package notify

import "time"

type Config struct {
	FromEmail string
	Timeout   time.Duration
}
