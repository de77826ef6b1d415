package flow

import "time"

var timeNow = time.Now

func EpochTime() int64 {
	return timeNow().Unix()
}

func Now() time.Time {
	return timeNow()
}

func SetTimeNowFn(f func() time.Time) {
	timeNow = f
}

func RestoreTimeNow() {
	timeNow = time.Now
}
