package balancer

import "errors"

// ErrNoHealthyUpstream is returned by every strategy when no admitted
// upstream remains in the snapshot (spec §4.2: "If no upstream is
// available, selection fails with NoHealthyUpstream").
var ErrNoHealthyUpstream = errors.New("no healthy upstream available")
