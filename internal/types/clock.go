package types

import "time"

// Clock abstracts time.Now so the cron sweep and tests can control time
// deterministically.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now().UTC()
}

// RealClock returns a Clock backed by the system time in UTC.
func RealClock() Clock {
	return realClock{}
}
