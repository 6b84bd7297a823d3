package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a MAJOR.MINOR protocol version.
type Version struct {
	Major int
	Minor int
}

// CurrentVersion is the protocol version spoken by this module.
var CurrentVersion = Version{Major: 1, Minor: 0}

// ParseVersion parses "MAJOR.MINOR". A bare "MAJOR" means minor 0 and a
// trailing ".PATCH" is accepted and ignored.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}
	parts := strings.SplitN(s, ".", 3)
	major, err := strconv.Atoi(parts[0])
	if err != nil || major < 0 {
		return Version{}, fmt.Errorf("invalid major version in %q", s)
	}
	minor := 0
	if len(parts) > 1 {
		minor, err = strconv.Atoi(parts[1])
		if err != nil || minor < 0 {
			return Version{}, fmt.Errorf("invalid minor version in %q", s)
		}
	}
	if len(parts) > 2 {
		if patch, err := strconv.Atoi(parts[2]); err != nil || patch < 0 {
			return Version{}, fmt.Errorf("invalid patch version in %q", s)
		}
	}
	return Version{Major: major, Minor: minor}, nil
}

func (v Version) String() string { return fmt.Sprintf("%d.%d", v.Major, v.Minor) }

// Negotiate returns the version both sides can speak: equal majors are
// required and the lower minor wins.
func (v Version) Negotiate(peer Version) (Version, bool) {
	if v.Major != peer.Major {
		return Version{}, false
	}
	return Version{Major: v.Major, Minor: min(v.Minor, peer.Minor)}, true
}

// Capability names exchanged during the handshake.
const (
	CapabilityTools      = "tools"
	CapabilityPipelining = "pipelining"
)
