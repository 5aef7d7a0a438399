//go:build unix && !linux

package sandbox

import "errors"

const selfExe = ""

var errConfinementUnsupported = errors.New("filesystem confinement requires linux")

func confinementSupported() error { return errConfinementUnsupported }

func (c *confinement) enter([]string) error { return errConfinementUnsupported }
