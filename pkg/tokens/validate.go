package tokens

import (
	"fmt"
	"regexp"
)

var iosTokenRegex = regexp.MustCompile(`^[0-9a-fA-F]{64}$`)

const (
	minAndroidTokenLen = 140
	minWebTokenLen     = 32
)

// validateShape rejects tokens that cannot possibly be valid for their
// platform before they enter the registry. iOS device tokens are fixed-length
// hex; Android and Web tokens only get a minimum-length heuristic since their
// formats are opaque.
func validateShape(token string, platform Platform) error {
	if token == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidToken)
	}
	switch platform {
	case PlatformIOS:
		if !iosTokenRegex.MatchString(token) {
			return fmt.Errorf("%w: ios token must be 64 hex characters", ErrInvalidToken)
		}
	case PlatformAndroid:
		if len(token) < minAndroidTokenLen {
			return fmt.Errorf("%w: android token shorter than %d characters", ErrInvalidToken, minAndroidTokenLen)
		}
	case PlatformWeb:
		if len(token) < minWebTokenLen {
			return fmt.Errorf("%w: web token shorter than %d characters", ErrInvalidToken, minWebTokenLen)
		}
	default:
		return fmt.Errorf("%w: unknown platform %q", ErrInvalidToken, platform)
	}
	return nil
}
