// Package sensor wraps physical temperature/humidity acquisition behind a
// narrow gateway interface. The rest of the system only ever sees a
// validated float pair or a read failure.
package sensor

import (
	"context"
	"errors"
)

var ErrReadFailed = errors.New("sensor read failed")

// Gateway produces one temperature/humidity sample per call. Read blocks
// for the duration of the physical acquisition; callers own the timing.
type Gateway interface {
	Read(ctx context.Context) (temperature, humidity float64, err error)
}
