// Package clock isolates wall-clock reads so write-path services can
// assign created_at before insert and keep the outbox payload consistent
// with the row.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

type System struct{}

func (System) Now() time.Time { return time.Now().UTC() }
