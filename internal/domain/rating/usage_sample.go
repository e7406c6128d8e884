package rating

import (
	"fmt"
	"math"
)

// UsageSample is the metered usage a cost is computed for. Values are copied
// in and never modified.
type UsageSample struct {
	bytesUp          int64
	bytesDown        int64
	peakBandwidthBps int64
	sessionSeconds   int64
}

// NewUsageSample validates counters and captures a sample.
func NewUsageSample(bytesUp, bytesDown, peakBandwidthBps, sessionSeconds int64) (UsageSample, error) {
	if bytesUp < 0 || bytesDown < 0 || peakBandwidthBps < 0 || sessionSeconds < 0 {
		return UsageSample{}, ErrInvalidUsage
	}
	if bytesUp > math.MaxInt64-bytesDown {
		return UsageSample{}, ErrInvalidUsage.WithMessage(
			fmt.Sprintf("total traffic %d + %d bytes exceeds the counter range", bytesUp, bytesDown))
	}
	return UsageSample{
		bytesUp:          bytesUp,
		bytesDown:        bytesDown,
		peakBandwidthBps: peakBandwidthBps,
		sessionSeconds:   sessionSeconds,
	}, nil
}

func (u UsageSample) BytesUp() int64          { return u.bytesUp }
func (u UsageSample) BytesDown() int64        { return u.bytesDown }
func (u UsageSample) PeakBandwidthBps() int64 { return u.peakBandwidthBps }
func (u UsageSample) SessionSeconds() int64   { return u.sessionSeconds }

// TotalBytes is upload plus download traffic.
func (u UsageSample) TotalBytes() int64 {
	return u.bytesUp + u.bytesDown
}

func (u UsageSample) String() string {
	return fmt.Sprintf("up=%d down=%d peak=%dbps session=%ds", u.bytesUp, u.bytesDown, u.peakBandwidthBps, u.sessionSeconds)
}
