package surface

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"mpiterm/internal/logging"
)

const defaultSessionPrefix = "mpiterm"

// TmuxClient is the subset of tmux operations the pool needs.
type TmuxClient interface {
	NewSession(name string) (string, error)
	NewWindow(sessionName string) (string, error)
	SelectWindow(target string) error
	SendText(target, text string) error
	SendKeys(target string, keys ...string) error
	KillSession(name string) error
	HasSession(name string) (bool, error)
}

// TmuxPool maps the run's window onto a tmux session and each surface onto
// one tmux window of that session.
type TmuxPool struct {
	client  TmuxClient
	session string
	logger  *logging.Logger
}

func NewTmuxPool(client TmuxClient, session string, logger *logging.Logger) *TmuxPool {
	return &TmuxPool{client: client, session: session, logger: logger}
}

// SessionName is the tmux session the pool creates.
func (p *TmuxPool) SessionName() string {
	return p.session
}

// Allocate creates the session with n windows and selects the first one. On
// failure any partially created session is killed.
func (p *TmuxPool) Allocate(ctx context.Context, n int) (Set, error) {
	if n < 1 {
		return nil, fmt.Errorf("surface count must be at least 1, got %d", n)
	}
	if p.client == nil {
		return nil, errors.New("tmux client unavailable")
	}
	first, err := p.client.NewSession(p.session)
	if err != nil {
		return nil, fmt.Errorf("create terminal window: %w", err)
	}
	set := &tmuxSet{client: p.client, session: p.session, targets: []string{first}}

	for i := 1; i < n; i++ {
		if err := ctx.Err(); err != nil {
			_ = set.Close()
			return nil, err
		}
		id, err := p.client.NewWindow(p.session)
		if err != nil {
			_ = set.Close()
			return nil, fmt.Errorf("create terminal surface %d: %w", i, err)
		}
		set.targets = append(set.targets, id)
	}
	if err := p.client.SelectWindow(first); err != nil {
		_ = set.Close()
		return nil, fmt.Errorf("activate terminal surface 0: %w", err)
	}
	if p.logger != nil {
		p.logger.Info("terminal surfaces allocated", map[string]string{
			"session": p.session,
			"count":   strconv.Itoa(n),
		})
	}
	return set, nil
}

type tmuxSet struct {
	client  TmuxClient
	session string
	targets []string

	once     sync.Once
	closeErr error
}

func (s *tmuxSet) Len() int {
	return len(s.targets)
}

func (s *tmuxSet) Surface(i int) Surface {
	return tmuxSurface{client: s.client, target: s.targets[i]}
}

// Close kills the session. A session that is already gone is not an error.
func (s *tmuxSet) Close() error {
	s.once.Do(func() {
		err := s.client.KillSession(s.session)
		if err == nil {
			return
		}
		if exists, hasErr := s.client.HasSession(s.session); hasErr == nil && !exists {
			return
		}
		s.closeErr = err
	})
	return s.closeErr
}

type tmuxSurface struct {
	client TmuxClient
	target string
}

func (s tmuxSurface) Inject(text string) error {
	if err := s.client.SendText(s.target, text); err != nil {
		return err
	}
	return s.Submit()
}

func (s tmuxSurface) Submit() error {
	return s.client.SendKeys(s.target, "Enter")
}

// SessionName builds a tmux-safe session name unique to this process.
func SessionName(prefix string, pid int) string {
	trimmed := strings.TrimSpace(prefix)
	if trimmed == "" {
		trimmed = defaultSessionPrefix
	}
	var builder strings.Builder
	builder.Grow(len(trimmed))
	for _, r := range trimmed {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	result := strings.Trim(builder.String(), "_")
	if result == "" {
		result = defaultSessionPrefix
	}
	return result + "-" + strconv.Itoa(pid)
}
