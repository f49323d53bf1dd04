package session

import (
	"log/slog"
	"sync"

	"github.com/OCAP2/markerpack/pkg/core"
)

// Context holds the game state last reported by the context provider.
type Context struct {
	mu      sync.RWMutex
	current core.Context
	known   bool
}

// NewContext creates a Context with no game state yet.
func NewContext() *Context {
	return &Context{}
}

// Get returns the current game state and whether one was reported.
func (c *Context) Get() (core.Context, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, c.known
}

// Set stores ctx and returns the previous state.
func (c *Context) Set(ctx core.Context) (prev core.Context, hadPrev bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev, hadPrev = c.current, c.known
	c.current, c.known = ctx, true
	return prev, hadPrev
}

// LogAttrs returns the map and character for log records.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.known {
		return nil
	}
	return []slog.Attr{
		slog.Int("mapId", int(c.current.MapID)),
		slog.Any("instanceId", c.current.InstanceID),
		slog.String("character", c.current.Character),
	}
}

// Changed reports which parts of the state differ between a and b.
type Changed struct {
	Map       bool `json:"map"`
	Instance  bool `json:"instance"`
	Character bool `json:"character"`
}

func (ch Changed) Any() bool { return ch.Map || ch.Instance || ch.Character }

func Diff(a, b core.Context) Changed {
	return Changed{
		Map:       a.MapID != b.MapID,
		Instance:  a.InstanceID != b.InstanceID,
		Character: a.Character != b.Character,
	}
}
