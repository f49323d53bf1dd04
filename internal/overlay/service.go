package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/OCAP2/markerpack/internal/activation"
	"github.com/OCAP2/markerpack/internal/queue"
	"github.com/OCAP2/markerpack/internal/session"
	"github.com/OCAP2/markerpack/internal/storage"
	"github.com/OCAP2/markerpack/pkg/core"
)

// ErrNoContext is returned by operations that need the game state before
// any was reported.
var ErrNoContext = errors.New("no game context reported yet")

// Dependencies holds the collaborators of a Service.
type Dependencies struct {
	Store   storage.Store
	Session *session.Context
	Logger  *slog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// FlushInterval is how often dirty records are written. Zero disables
	// the background writer; Flush and Close still write.
	FlushInterval time.Duration
}

// Service serializes every operation on a Pack and persists the activation
// records it changes.
type Service struct {
	deps  Dependencies
	mu    sync.Mutex
	pack  *Pack
	queue *queue.Queue[storage.Record]

	// flushMu keeps writes of one batch ahead of the next.
	flushMu   sync.Mutex
	stopChan  chan struct{}
	done      chan struct{}
	looping   bool
	closeOnce sync.Once
}

// NewService wraps pack. Start launches the background writer.
func NewService(pack *Pack, deps Dependencies) *Service {
	if deps.Session == nil {
		deps.Session = session.NewContext()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	return &Service{
		deps:     deps,
		pack:     pack,
		queue:    queue.New[storage.Record](),
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the background writer.
func (s *Service) Start() {
	if s.deps.FlushInterval <= 0 || s.looping {
		return
	}
	s.looping = true
	go s.writeLoop()
}

func (s *Service) writeLoop() {
	defer close(s.done)
	ticker := time.NewTicker(s.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.flushQueue(context.Background()); err != nil {
				s.deps.Logger.Warn("activation flush failed", "error", err, "pending", s.queue.Len())
			}
		case <-s.stopChan:
			return
		}
	}
}

// Close stops the writer and writes every pending record.
func (s *Service) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		close(s.stopChan)
		if s.looping {
			<-s.done
		}
		err = s.Flush(ctx)
	})
	return err
}

// Flush queues every dirty record and writes the queue to the store.
func (s *Service) Flush(ctx context.Context) error {
	s.mu.Lock()
	s.collect()
	s.mu.Unlock()
	return s.flushQueue(ctx)
}

func (s *Service) flushQueue(ctx context.Context) error {
	s.flushMu.Lock()
	defer s.flushMu.Unlock()

	pending := storage.Coalesce(s.queue.GetAndEmpty())
	for i, rec := range pending {
		if err := rec.Save(ctx, s.deps.Store); err != nil {
			s.queue.Requeue(pending[i:]...)
			return fmt.Errorf("saving %s: %w", rec.Key(), err)
		}
	}
	if len(pending) > 0 {
		s.deps.Logger.Debug("activation records written", "count", len(pending))
	}
	return nil
}

// collect moves the engine's dirty records onto the write queue. Callers
// hold s.mu.
func (s *Service) collect() {
	d := s.pack.engine.TakeDirty()
	if d.Empty() {
		return
	}
	account := s.pack.engine.AccountName()
	if d.Account != nil {
		s.queue.Push(storage.Record{AccountName: account, Account: d.Account})
	}
	for name, c := range d.Characters {
		s.queue.Push(storage.Record{AccountName: account, CharacterName: name, Character: c})
	}
}

// current returns the reported game state stamped with the clock.
func (s *Service) current() (core.Context, error) {
	ctx, ok := s.deps.Session.Get()
	if !ok {
		return core.Context{}, ErrNoContext
	}
	ctx.Time = s.deps.Clock()
	return ctx, nil
}

// SetContext records the game state. A new character's record is loaded
// from the store first, and live records that no longer apply are dropped.
func (s *Service) SetContext(ctx context.Context, game core.Context) (session.Changed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	if game.Character != "" && !s.pack.engine.HasCharacter(game.Character) {
		data, err := s.deps.Store.LoadCharacter(ctx, s.pack.engine.AccountName(), game.Character)
		if err != nil {
			return session.Changed{}, fmt.Errorf("loading character %q: %w", game.Character, err)
		}
		s.pack.engine.LoadCharacter(game.Character, data)
	}

	prev, hadPrev := s.deps.Session.Set(game)
	changed := session.Diff(prev, game)
	if !hadPrev {
		changed = session.Changed{Map: true, Instance: true, Character: game.Character != ""}
	}
	if changed.Any() {
		game.Time = s.deps.Clock()
		report := s.pack.Tick(game)
		s.deps.Logger.Info("game context changed",
			"mapId", game.MapID, "instanceId", game.InstanceID, "character", game.Character,
			"released", report.Total())
	}
	return changed, nil
}

// Context returns the last reported game state.
func (s *Service) Context() (core.Context, bool) {
	return s.deps.Session.Get()
}

func (s *Service) Trigger(guid uuid.UUID) (activation.TriggerResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	ctx, err := s.current()
	if err != nil {
		return 0, err
	}
	return s.pack.Trigger(guid, ctx)
}

func (s *Service) AutoTrigger(pos core.Vec3) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	ctx, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.pack.AutoTrigger(pos, ctx), nil
}

func (s *Service) Untrigger(guid uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()
	return s.pack.Untrigger(guid)
}

// Tick releases every record whose reset condition holds now.
func (s *Service) Tick() (activation.TickReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	ctx, err := s.current()
	if err != nil {
		return activation.TickReport{}, err
	}
	return s.pack.Tick(ctx), nil
}

func (s *Service) ActiveMarkers() ([]RenderMarker, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.pack.ActiveMarkers(ctx), nil
}

func (s *Service) ActiveTrails() ([]RenderTrail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.current()
	if err != nil {
		return nil, err
	}
	return s.pack.ActiveTrails(ctx), nil
}

// IsVisible reports whether guid is currently shown, ignoring category
// toggles and filters.
func (s *Service) IsVisible(guid uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, err := s.current()
	if err != nil {
		return false, err
	}
	return s.pack.engine.IsVisible(guid, ctx), nil
}

func (s *Service) ToggleCategory(id core.CategoryID, enabled bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()
	return s.pack.ToggleCategory(id, enabled)
}

func (s *Service) FindCategory(path string) (core.CategoryID, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.FindCategory(path)
}

func (s *Service) RemoveCategory(id core.CategoryID) ([]core.CategoryID, []uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	removed, orphans, err := s.pack.RemoveCategory(id)
	if err == nil {
		s.deps.Logger.Info("category removed", "id", id, "categories", len(removed), "entities", len(orphans))
	}
	return removed, orphans, err
}

// CreateCategory adds a category under parent, or a root when parent is nil.
func (s *Service) CreateCategory(parent *core.CategoryID, name string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()

	c, err := s.pack.CreateCategory(parent)
	if err != nil {
		return core.Category{}, err
	}
	if name != "" {
		if err := s.pack.RenameCategory(c.ID, name, ""); err != nil {
			return core.Category{}, err
		}
		c.Name, c.DisplayName = name, name
	}
	s.deps.Logger.Info("category created", "id", c.ID, "name", c.Name)
	return c, nil
}

func (s *Service) MoveCategory(id core.CategoryID, parent *core.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.MoveCategory(id, parent)
}

func (s *Service) SetCategoryAttributes(id core.CategoryID, attrs core.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.SetCategoryAttributes(id, attrs)
}

func (s *Service) AddMarker(m core.Marker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.AddMarker(m)
}

// AddTrail registers t. data, when not nil, is decoded as its .trl geometry.
func (s *Service) AddTrail(t core.Trail, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data != nil {
		return s.pack.AddTrailBinary(t, data)
	}
	return s.pack.AddTrail(t)
}

func (s *Service) SetEntityAttributes(guid uuid.UUID, attrs core.Attributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.SetEntityAttributes(guid, attrs)
}

// RemoveEntity deletes a marker or trail along with its activation records.
func (s *Service) RemoveEntity(guid uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.collect()
	return s.pack.RemoveEntity(guid)
}

// Content returns a copy of the pack for saving.
func (s *Service) Content() Content {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pack.Content()
}

// Status summarizes the pack and the write queue.
type Status struct {
	Pack          PackStats `json:"pack"`
	QueueLength   int       `json:"queueLength"`
	QueuedRecords int       `json:"queuedRecords"`
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{
		Pack:          s.pack.Stats(),
		QueueLength:   s.queue.Len(),
		QueuedRecords: s.queue.Pushed(),
	}
}
