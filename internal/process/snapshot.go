package process

import (
	"context"
	"errors"
	"fmt"

	gopsprocess "github.com/shirou/gopsutil/v4/process"
)

// Descendants returns the pids of every process below pid, children first
// then their children. It is a point-in-time view: processes spawned after
// the call are not included.
func Descendants(ctx context.Context, pid int) ([]int, error) {
	if pid <= 0 {
		return nil, nil
	}
	root, err := gopsprocess.NewProcessWithContext(ctx, int32(pid))
	if err != nil {
		return nil, fmt.Errorf("inspect process %d: %w", pid, err)
	}

	var pids []int
	seen := map[int32]bool{root.Pid: true}
	queue := []*gopsprocess.Process{root}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		children, err := current.ChildrenWithContext(ctx)
		if err != nil {
			if errors.Is(err, gopsprocess.ErrorNoChildren) {
				continue
			}
			if current == root {
				return nil, fmt.Errorf("list children of %d: %w", pid, err)
			}
			// The child may have exited between listing and inspection.
			continue
		}
		for _, child := range children {
			if child == nil || seen[child.Pid] {
				continue
			}
			seen[child.Pid] = true
			pids = append(pids, int(child.Pid))
			queue = append(queue, child)
		}
	}
	return pids, nil
}
