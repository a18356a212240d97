//go:build windows

package worker

import (
	"context"
	"errors"
)

func attachSetup(context.Context, Invocation, SetupOptions) (int, error) {
	return 1, errors.New("dtach sessions are not supported on windows")
}
