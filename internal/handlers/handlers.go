// Package handlers binds host commands to the overlay service.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/OCAP2/markerpack/internal/dispatcher"
	"github.com/OCAP2/markerpack/internal/overlay"
	"github.com/OCAP2/markerpack/internal/packio"
	"github.com/OCAP2/markerpack/internal/parser"
	"github.com/OCAP2/markerpack/internal/util"
)

// Flusher is implemented by the telemetry provider.
type Flusher interface {
	Flush(ctx context.Context) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Service   *overlay.Service
	Parser    *parser.Parser
	Logger    *slog.Logger
	Telemetry Flusher // optional
	PackDir   string
	Version   string
	BuildDate string
	// SaveTimeout bounds :SAVE: and :SAVE:PACK:. Zero means 5s.
	SaveTimeout time.Duration
}

// Handler turns dispatcher events into service calls.
type Handler struct {
	deps Dependencies
}

// New creates a handler. Service and Parser are required.
func New(deps Dependencies) (*Handler, error) {
	if deps.Service == nil {
		return nil, errors.New("handlers: nil service")
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser(deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.SaveTimeout <= 0 {
		deps.SaveTimeout = 5 * time.Second
	}
	return &Handler{deps: deps}, nil
}

// RegisterHandlers registers every command with d.
func (h *Handler) RegisterHandlers(d *dispatcher.Dispatcher) {
	// State changes - sync, the host needs the result on the same tick
	d.Register(":CONTEXT:", h.handleContext, dispatcher.Logged())
	d.Register(":TRIGGER:", h.handleTrigger, dispatcher.Logged())
	d.Register(":UNTRIGGER:", h.handleUntrigger, dispatcher.Logged())
	d.Register(":TOGGLE:CATEGORY:", h.handleToggleCategory, dispatcher.Logged())
	d.Register(":REMOVE:CATEGORY:", h.handleRemoveCategory, dispatcher.Logged())

	// Position updates arrive every frame - buffered
	d.Register(":AUTOTRIGGER:", h.handleAutoTrigger, dispatcher.Buffered(1000))
	d.Register(":TICK:", h.handleTick, dispatcher.Buffered(100))

	// Queries
	d.Register(":VISIBLE:", h.handleVisible)
	d.Register(":ACTIVE:MARKERS:", h.handleActiveMarkers)
	d.Register(":ACTIVE:TRAILS:", h.handleActiveTrails)
	d.Register(":STATUS:", h.handleStatus)
	d.Register(":VERSION:", func(dispatcher.Event) (any, error) {
		return []string{h.deps.Version, h.deps.BuildDate}, nil
	})

	// Pack editing
	d.Register(":CREATE:CATEGORY:", h.handleCreateCategory, dispatcher.Logged())
	d.Register(":MOVE:CATEGORY:", h.handleMoveCategory, dispatcher.Logged())
	d.Register(":SET:CATEGORY:ATTRIBUTES:", h.handleSetCategoryAttributes, dispatcher.Logged())
	d.Register(":ADD:MARKER:", h.handleAddMarker, dispatcher.Logged())
	d.Register(":ADD:TRAIL:", h.handleAddTrail, dispatcher.Logged())
	d.Register(":SET:ENTITY:ATTRIBUTES:", h.handleSetEntityAttributes, dispatcher.Logged())
	d.Register(":REMOVE:ENTITY:", h.handleRemoveEntity, dispatcher.Logged())

	// Persistence
	d.Register(":SAVE:", h.handleSave, dispatcher.Logged())
	d.Register(":SAVE:PACK:", h.handleSavePack, dispatcher.Logged())
}

func (h *Handler) handleContext(e dispatcher.Event) (any, error) {
	game, err := h.deps.Parser.ParseContext(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse context: %w", err)
	}
	changed, err := h.deps.Service.SetContext(context.Background(), game)
	if err != nil {
		return nil, err
	}
	return changed, nil
}

func (h *Handler) handleTrigger(e dispatcher.Event) (any, error) {
	guid, err := h.deps.Parser.ParseGUIDArg(e.Args)
	if err != nil {
		return nil, err
	}
	result, err := h.deps.Service.Trigger(guid)
	if err != nil {
		return nil, fmt.Errorf("failed to trigger %s: %w", guid, err)
	}
	return result.String(), nil
}

func (h *Handler) handleUntrigger(e dispatcher.Event) (any, error) {
	guid, err := h.deps.Parser.ParseGUIDArg(e.Args)
	if err != nil {
		return nil, err
	}
	return h.deps.Service.Untrigger(guid), nil
}

func (h *Handler) handleAutoTrigger(e dispatcher.Event) (any, error) {
	pos, err := h.deps.Parser.ParsePosition(e.Args)
	if err != nil {
		return nil, fmt.Errorf("failed to parse position: %w", err)
	}
	hidden, err := h.deps.Service.AutoTrigger(pos)
	if err != nil {
		return nil, err
	}
	if len(hidden) > 0 {
		h.deps.Logger.Debug("auto-triggered markers", "count", len(hidden))
	}
	return hidden, nil
}

func (h *Handler) handleTick(dispatcher.Event) (any, error) {
	return h.deps.Service.Tick()
}

func (h *Handler) handleToggleCategory(e dispatcher.Event) (any, error) {
	id, enabled, err := h.deps.Parser.ParseToggle(e.Args, h.deps.Service.FindCategory)
	if err != nil {
		return nil, err
	}
	changed, err := h.deps.Service.ToggleCategory(id, enabled)
	if err != nil {
		return nil, err
	}
	return changed, nil
}

type removal struct {
	Categories int `json:"categories"`
	Entities   int `json:"entities"`
}

func (h *Handler) handleRemoveCategory(e dispatcher.Event) (any, error) {
	if len(e.Args) != 1 {
		return nil, fmt.Errorf("remove category: %w", parser.ErrArgCount)
	}
	id, err := parser.ParseCategoryRef(e.Args[0], h.deps.Service.FindCategory)
	if err != nil {
		return nil, err
	}
	cats, entities, err := h.deps.Service.RemoveCategory(id)
	if err != nil {
		return nil, err
	}
	return removal{Categories: len(cats), Entities: len(entities)}, nil
}

func (h *Handler) handleCreateCategory(e dispatcher.Event) (any, error) {
	parent, name, err := h.deps.Parser.ParseCreateCategory(e.Args, h.deps.Service.FindCategory)
	if err != nil {
		return nil, err
	}
	return h.deps.Service.CreateCategory(parent, name)
}

func (h *Handler) handleMoveCategory(e dispatcher.Event) (any, error) {
	id, parent, err := h.deps.Parser.ParseMoveCategory(e.Args, h.deps.Service.FindCategory)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Service.MoveCategory(id, parent); err != nil {
		return nil, fmt.Errorf("failed to move category %d: %w", id, err)
	}
	return "ok", nil
}

func (h *Handler) handleSetCategoryAttributes(e dispatcher.Event) (any, error) {
	id, attrs, err := h.deps.Parser.ParseCategoryAttributes(e.Args, h.deps.Service.FindCategory)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Service.SetCategoryAttributes(id, attrs); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (h *Handler) handleAddMarker(e dispatcher.Event) (any, error) {
	m, err := h.deps.Parser.ParseMarker(e.Args)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Service.AddMarker(m); err != nil {
		return nil, fmt.Errorf("failed to add marker: %w", err)
	}
	return m.GUID.String(), nil
}

func (h *Handler) handleAddTrail(e dispatcher.Event) (any, error) {
	t, data, err := h.deps.Parser.ParseTrail(e.Args)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Service.AddTrail(t, data); err != nil {
		return nil, fmt.Errorf("failed to add trail: %w", err)
	}
	return t.GUID.String(), nil
}

func (h *Handler) handleSetEntityAttributes(e dispatcher.Event) (any, error) {
	guid, attrs, err := h.deps.Parser.ParseEntityAttributes(e.Args)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Service.SetEntityAttributes(guid, attrs); err != nil {
		return nil, err
	}
	return "ok", nil
}

func (h *Handler) handleRemoveEntity(e dispatcher.Event) (any, error) {
	guid, err := h.deps.Parser.ParseGUIDArg(e.Args)
	if err != nil {
		return nil, err
	}
	return h.deps.Service.RemoveEntity(guid), nil
}

func (h *Handler) handleVisible(e dispatcher.Event) (any, error) {
	guid, err := h.deps.Parser.ParseGUIDArg(e.Args)
	if err != nil {
		return nil, err
	}
	return h.deps.Service.IsVisible(guid)
}

func (h *Handler) handleActiveMarkers(dispatcher.Event) (any, error) {
	return h.deps.Service.ActiveMarkers()
}

func (h *Handler) handleActiveTrails(dispatcher.Event) (any, error) {
	return h.deps.Service.ActiveTrails()
}

func (h *Handler) handleStatus(dispatcher.Event) (any, error) {
	return h.deps.Service.Status(), nil
}

func (h *Handler) handleSave(dispatcher.Event) (any, error) {
	ctx, cancel := context.WithTimeout(context.Background(), h.deps.SaveTimeout)
	defer cancel()

	if err := h.deps.Service.Flush(ctx); err != nil {
		h.deps.Logger.Error("Failed to save activation data", "error", err)
		return nil, err
	}
	if h.deps.Telemetry != nil {
		if err := h.deps.Telemetry.Flush(ctx); err != nil {
			h.deps.Logger.Warn("Failed to flush OTel data", "error", err)
		}
	}
	return "ok", nil
}

// handleSavePack writes the pack to the directory given as the only
// argument, or to the configured pack directory.
func (h *Handler) handleSavePack(e dispatcher.Event) (any, error) {
	dir := h.deps.PackDir
	if len(e.Args) > 0 {
		if d := util.CleanArgs(e.Args)[0]; d != "" {
			dir = d
		}
	}
	if dir == "" {
		return nil, errors.New("save pack: no directory configured")
	}
	if err := packio.SaveDir(dir, h.deps.Service.Content()); err != nil {
		return nil, fmt.Errorf("failed to save pack: %w", err)
	}
	h.deps.Logger.Info("Pack saved", "dir", dir)
	return "ok", nil
}
