package delivery

import "errors"

// Sentinel kinds for delivery errors. Delivery failures never fail an
// assessment; they are logged and counted.
var (
	ErrNotDelivered = errors.New("alert not delivered")
	ErrHubClosed    = errors.New("hub closed")
)
