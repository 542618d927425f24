package syncengine

import "sync"

const offlineThreshold = 2

// OfflineDetector infers reachability from the failure pattern of
// outbound calls: two consecutive connection-level failures flip it
// offline, any success flips it back. HTTP-level errors are ignored;
// they prove the network works.
type OfflineDetector struct {
	mu       sync.Mutex
	failures int
	offline  bool
	onChange func(online bool)
}

func NewOfflineDetector(onChange func(online bool)) *OfflineDetector {
	return &OfflineDetector{onChange: onChange}
}

func (d *OfflineDetector) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return !d.offline
}

// Record classifies the result of an outbound call. A nil error or any
// non-connection error counts as proof of connectivity.
func (d *OfflineDetector) Record(err error) {
	d.mu.Lock()

	var notify func(bool)
	var online bool

	if err != nil && IsConnectionError(err) {
		d.failures++
		if d.failures >= offlineThreshold && !d.offline {
			d.offline = true
			notify, online = d.onChange, false
		}
	} else {
		d.failures = 0
		if d.offline {
			d.offline = false
			notify, online = d.onChange, true
		}
	}

	d.mu.Unlock()

	if notify != nil {
		notify(online)
	}
}
