//go:build windows

package worker

import "errors"

func systemExec(string, []string, []string) error {
	return errors.New("replacing the process image is not supported on windows")
}
