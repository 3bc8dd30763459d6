// Package memory provides an in-memory implementation of the core
// persistence store used for tests and ephemeral environments. It is also
// the canonical transactional engine: the sqlite and postgres stores embed
// it and add durable snapshots.
package memory

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sort"
	"sync"
	"time"

	"cratecore/pkg/domain"
)

// Compile-time contract assertion ensuring Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Crate aliases domain.Crate for in-memory persistence operations.
	Crate = domain.Crate
	// Activity aliases domain.Activity.
	Activity = domain.Activity
	// Notification aliases domain.Notification.
	Notification = domain.Notification
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	crates        map[string]Crate
	activities    []Activity
	notifications []Notification
}

// Snapshot captures a point-in-time clone of the store state. Activities and
// notifications keep their append order.
type Snapshot struct {
	Crates        map[string]Crate `json:"crates"`
	Activities    []Activity       `json:"activities"`
	Notifications []Notification   `json:"notifications"`
}

func newMemoryState() memoryState {
	return memoryState{crates: make(map[string]Crate)}
}

func (s memoryState) clone() memoryState {
	out := memoryState{
		crates:        make(map[string]Crate, len(s.crates)),
		activities:    make([]Activity, len(s.activities)),
		notifications: make([]Notification, len(s.notifications)),
	}
	for k, v := range s.crates {
		out.crates[k] = cloneCrate(v)
	}
	copy(out.activities, s.activities)
	copy(out.notifications, s.notifications)
	return out
}

func cloneCrate(c Crate) Crate {
	if c.PreviousStatus != nil {
		prev := *c.PreviousStatus
		c.PreviousStatus = &prev
	}
	if c.FlagDetails != nil {
		fd := *c.FlagDetails
		c.FlagDetails = &fd
	}
	c.TempUpper = cloneFloat(c.TempUpper)
	c.TempLower = cloneFloat(c.TempLower)
	c.HumidityUpper = cloneFloat(c.HumidityUpper)
	c.HumidityLower = cloneFloat(c.HumidityLower)
	return c
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Store is a mutex-guarded in-memory persistence backend. Transactions clone
// the state, apply mutations, evaluate rules against the mutated snapshot,
// and swap the state on success, so concurrent operations on the same crate
// serialize rather than race.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	return hex.EncodeToString(b[:])
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cloned := s.state.clone()
	return Snapshot{
		Crates:        cloned.crates,
		Activities:    cloned.activities,
		Notifications: cloned.notifications,
	}
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	state := newMemoryState()
	for k, v := range snapshot.Crates {
		state.crates[k] = cloneCrate(v)
	}
	state.activities = append(state.activities, snapshot.Activities...)
	state.notifications = append(state.notifications, snapshot.Notifications...)
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// SetNowFunc overrides the time provider; intended for tests.
func (s *Store) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.nowFn = now
	}
}

// transaction represents a mutation set applied to the store state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

// ListCrates returns all crates within the transaction snapshot.
func (v transactionView) ListCrates() []Crate {
	out := make([]Crate, 0, len(v.state.crates))
	for _, c := range v.state.crates {
		out = append(out, cloneCrate(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CrateID < out[j].CrateID })
	return out
}

// FindCrate looks up a crate by id within the transaction snapshot.
func (v transactionView) FindCrate(id string) (Crate, bool) {
	c, ok := v.state.crates[id]
	if !ok {
		return Crate{}, false
	}
	return cloneCrate(c), true
}

// RunInTransaction executes fn against a cloned state, evaluates the rules
// engine over the recorded changes, and commits the clone when no blocking
// violations are present. The store mutex is held for the whole cycle.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// FindCrate exposes crate lookup within the transaction scope.
func (tx *transaction) FindCrate(id string) (Crate, bool) {
	c, ok := tx.state.crates[id]
	if !ok {
		return Crate{}, false
	}
	return cloneCrate(c), true
}

// CreateCrate inserts a new crate, rejecting duplicate identifiers before
// any state is touched.
func (tx *transaction) CreateCrate(c Crate) (Crate, error) {
	if c.CrateID == "" {
		return Crate{}, domain.ValidationError{Field: "crate_id", Reason: "required"}
	}
	if _, exists := tx.state.crates[c.CrateID]; exists {
		return Crate{}, domain.DuplicateIDError{ID: c.CrateID}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.now
	}
	if c.LastUpdate.IsZero() {
		c.LastUpdate = tx.now
	}
	tx.state.crates[c.CrateID] = cloneCrate(c)
	after, err := domain.NewChangePayloadFromValue(c)
	if err != nil {
		return Crate{}, err
	}
	tx.recordChange(Change{
		Entity:   domain.EntityCrate,
		Action:   domain.ActionCreate,
		EntityID: c.CrateID,
		After:    after,
	})
	return cloneCrate(c), nil
}

// UpdateCrate applies mutator to a copy of the stored crate and records the
// before/after payloads for rule evaluation.
func (tx *transaction) UpdateCrate(id string, mutator func(*Crate) error) (Crate, error) {
	current, ok := tx.state.crates[id]
	if !ok {
		return Crate{}, domain.NotFoundError{Entity: domain.EntityCrate, ID: id}
	}
	before, err := domain.NewChangePayloadFromValue(current)
	if err != nil {
		return Crate{}, err
	}
	updated := cloneCrate(current)
	if err := mutator(&updated); err != nil {
		return Crate{}, err
	}
	updated.CrateID = id
	updated.LastUpdate = tx.now
	tx.state.crates[id] = cloneCrate(updated)
	after, err := domain.NewChangePayloadFromValue(updated)
	if err != nil {
		return Crate{}, err
	}
	tx.recordChange(Change{
		Entity:   domain.EntityCrate,
		Action:   domain.ActionUpdate,
		EntityID: id,
		Before:   before,
		After:    after,
	})
	return cloneCrate(updated), nil
}

// DeleteCrate removes a crate record.
func (tx *transaction) DeleteCrate(id string) error {
	current, ok := tx.state.crates[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityCrate, ID: id}
	}
	before, err := domain.NewChangePayloadFromValue(current)
	if err != nil {
		return err
	}
	delete(tx.state.crates, id)
	tx.recordChange(Change{
		Entity:   domain.EntityCrate,
		Action:   domain.ActionDelete,
		EntityID: id,
		Before:   before,
	})
	return nil
}

// GetCrate returns a crate by id outside any transaction.
func (s *Store) GetCrate(id string) (Crate, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.state.crates[id]
	if !ok {
		return Crate{}, false
	}
	return cloneCrate(c), true
}

// ListCrates returns all crates sorted by identifier.
func (s *Store) ListCrates() []Crate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Crate, 0, len(s.state.crates))
	for _, c := range s.state.crates {
		out = append(out, cloneCrate(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CrateID < out[j].CrateID })
	return out
}

// AppendActivity persists one immutable audit record. It runs outside the
// crate transaction scope: audit writes are a downstream side effect with
// their own failure domain.
func (s *Store) AppendActivity(_ context.Context, activity Activity) (Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if activity.ID == "" {
		activity.ID = newID()
	}
	if activity.Time.IsZero() {
		activity.Time = s.nowFn()
	}
	s.state.activities = append(s.state.activities, activity)
	return activity, nil
}

// ListActivities returns activities newest first, up to limit (0 means all).
func (s *Store) ListActivities(_ context.Context, limit int) ([]Activity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.state.activities, limit), nil
}

// CreateNotification persists one unread notification.
func (s *Store) CreateNotification(_ context.Context, notification Notification) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if notification.ID == "" {
		notification.ID = newID()
	}
	if notification.Time.IsZero() {
		notification.Time = s.nowFn()
	}
	notification.Read = false
	s.state.notifications = append(s.state.notifications, notification)
	return notification, nil
}

// ListNotifications returns notifications newest first, up to limit (0 means all).
func (s *Store) ListNotifications(_ context.Context, limit int) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestFirst(s.state.notifications, limit), nil
}

// MarkNotificationRead flips the read marker, the only mutation allowed on a
// notification after creation.
func (s *Store) MarkNotificationRead(_ context.Context, id string) (Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.state.notifications {
		if s.state.notifications[i].ID == id {
			s.state.notifications[i].Read = true
			return s.state.notifications[i], nil
		}
	}
	return Notification{}, domain.NotFoundError{Entity: domain.EntityNotification, ID: id}
}

func newestFirst[T any](records []T, limit int) []T {
	out := make([]T, len(records))
	for i, rec := range records {
		out[len(records)-1-i] = rec
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
