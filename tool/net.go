package tool

import (
	"fmt"
	"net/url"
	"time"

	probing "github.com/prometheus-community/pro-bing"
)

// CheckReachable pings the host of serverURL and returns the average round-trip
// time. Used by the status command; upload failures are classified from the
// transport error itself, not from ping results.
func CheckReachable(serverURL string, timeout time.Duration) (time.Duration, error) {
	u, err := url.Parse(serverURL)
	if err != nil || u.Host == "" {
		return 0, fmt.Errorf("invalid server URL: %s", serverURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	pinger, err := probing.NewPinger(u.Hostname())
	if err != nil {
		return 0, fmt.Errorf("failed to create pinger: %v", err)
	}
	pinger.Count = 3
	pinger.Timeout = timeout
	pinger.SetPrivileged(false)

	if err := pinger.Run(); err != nil {
		return 0, fmt.Errorf("ping failed: %v", err)
	}
	stats := pinger.Statistics()
	if stats.PacketsRecv == 0 {
		return 0, fmt.Errorf("host %s did not answer", u.Hostname())
	}
	return stats.AvgRtt, nil
}
