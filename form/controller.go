package form

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/tbxark/formstate/field"
	"github.com/tbxark/formstate/messages"
	"github.com/tbxark/formstate/store"
)

// ErrFieldNotRegistered is returned when an operation names a field key that
// has no registration.
var ErrFieldNotRegistered = errors.New("field not registered")

// registration is the type-erased form of a field.Definition.
type registration struct {
	key       string
	typ       reflect.Type
	initial   any
	debounce  time.Duration
	dependsOn []string
	mode      field.ValidationMode
	adoption  field.Adoption

	validate      func(v any) string
	validateAsync func(ctx context.Context, v any) (string, error)
	cross         func(v any, form field.Values) string
	transform     func(v any) any
}

// sameConfig compares the comparable parts of two registrations. Function
// fields only count by presence, so swapping one closure for another with
// the same shape still reads as "unchanged".
func (r *registration) sameConfig(o *registration) bool {
	return r.typ == o.typ &&
		reflect.DeepEqual(r.initial, o.initial) &&
		r.debounce == o.debounce &&
		slices.Equal(r.dependsOn, o.dependsOn) &&
		r.mode == o.mode &&
		r.adoption == o.adoption &&
		(r.validate == nil) == (o.validate == nil) &&
		(r.validateAsync == nil) == (o.validateAsync == nil) &&
		(r.cross == nil) == (o.cross == nil) &&
		(r.transform == nil) == (o.transform == nil)
}

func (r *registration) effectiveDebounce() time.Duration {
	switch {
	case r.debounce < 0:
		return 0
	case r.debounce == 0:
		return field.DefaultDebounce
	default:
		return r.debounce
	}
}

// Controller owns all form state. Mutations are serialized by an internal
// mutex; "concurrency" is interleaved asynchronous work (debounce timers,
// async validators, fetches), each guarded by a per-field generation
// counter so stale completions are discarded.
type Controller struct {
	mu sync.Mutex

	id       string
	defs     map[string]*registration
	baseline map[string]any
	snap     *Snapshot

	mode field.ValidationMode
	msgs *messages.Set
	log  *slog.Logger

	// async validation bookkeeping
	valGen    map[string]uint64
	valTimers map[string]*time.Timer
	// fields whose current error came from a settled async run; sync
	// re-validation of the unchanged value must not clear it
	asyncFailed map[string]bool

	// inverse dependency graph: key -> fields that list key in DependsOn
	dependents map[string][]string

	// linear undo/redo history of values maps
	history     []map[string]any
	cursor      int
	historyHold bool

	// persistence
	store        store.Store
	saved        map[string]any
	saveDebounce time.Duration
	saveTimer    *time.Timer

	// submission
	throttle time.Duration
	limiter  *rate.Limiter

	batching int

	closed bool

	// notification fan-out; guarded by notifyMu, never by mu
	notifyMu      sync.Mutex
	notifying     bool
	notifyQueue   []*Snapshot
	listeners     map[int]func(*Snapshot)
	nextListener  int
	subscribers   map[int]chan *Snapshot
	nextSubscribe int
	waiters       []chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithFormID names the form; the ID keys persistence. Defaults to a random
// UUID.
func WithFormID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// WithValidationMode sets the controller-level default validation mode.
// Field-level modes override it.
func WithValidationMode(mode field.ValidationMode) Option {
	return func(c *Controller) { c.mode = mode }
}

// WithMessages sets the message set handed to callers via Messages.
func WithMessages(m *messages.Set) Option {
	return func(c *Controller) { c.msgs = m }
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithStore enables persistence: saved values are loaded once at
// construction and adopted by matching fields as they register, and
// mutations schedule a debounced save.
func WithStore(s store.Store) Option {
	return func(c *Controller) { c.store = s }
}

// WithSaveDebounce sets the autosave delay. Defaults to one second.
func WithSaveDebounce(d time.Duration) Option {
	return func(c *Controller) { c.saveDebounce = d }
}

// WithSubmitThrottle drops Submit calls started within d of the previous
// one.
func WithSubmitThrottle(d time.Duration) Option {
	return func(c *Controller) { c.throttle = d }
}

// New creates an empty controller. Fields are added with Register.
func New(opts ...Option) *Controller {
	c := &Controller{
		defs:         map[string]*registration{},
		baseline:     map[string]any{},
		snap:         newSnapshot(),
		mode:         field.ModeAlways,
		valGen:       map[string]uint64{},
		valTimers:    map[string]*time.Timer{},
		asyncFailed:  map[string]bool{},
		dependents:   map[string][]string{},
		saveDebounce: time.Second,
		listeners:    map[int]func(*Snapshot){},
		subscribers:  map[int]chan *Snapshot{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.msgs == nil {
		c.msgs = messages.Default()
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	if c.throttle > 0 {
		c.limiter = rate.NewLimiter(rate.Every(c.throttle), 1)
	}
	c.history = []map[string]any{{}}
	c.cursor = 0
	if c.store != nil {
		saved, err := c.store.Load(context.Background(), c.id)
		if err != nil {
			c.log.Warn("failed to load saved form values", "form", c.id, "error", err)
		} else {
			c.saved = saved
		}
	}
	return c
}

// ID returns the form's instance ID.
func (c *Controller) ID() string {
	return c.id
}

// Messages returns the current message set.
func (c *Controller) Messages() *messages.Set {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.msgs
}

// SetMessages swaps the message set. No other controller state is touched.
func (c *Controller) SetMessages(m *messages.Set) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m != nil {
		c.msgs = m
	}
}

// Snapshot returns the current immutable snapshot.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Register adds a field to controller c, or reconfigures an existing one.
//
// Re-registering an unchanged definition is a no-op. A changed definition
// replaces the configuration; the live value is preserved, except that a
// changed initial value is adopted while the field is pristine and its
// adoption strategy is AdoptPreferLocal (the default). A dirty field only
// has its dirty-comparison baseline moved.
func Register[T any](c *Controller, def field.Definition[T]) error {
	reg := &registration{
		key:       def.ID.Key(),
		typ:       def.ID.Type(),
		initial:   def.InitialValue,
		debounce:  def.Debounce,
		dependsOn: slices.Clone(def.DependsOn),
		mode:      def.Mode,
		adoption:  def.Adoption,
	}
	if def.Validator != nil {
		fn := def.Validator
		reg.validate = func(v any) string { return fn(coerce[T](v)) }
	}
	if def.AsyncValidator != nil {
		fn := def.AsyncValidator
		reg.validateAsync = func(ctx context.Context, v any) (string, error) { return fn(ctx, coerce[T](v)) }
	}
	if def.CrossValidator != nil {
		fn := def.CrossValidator
		reg.cross = func(v any, form field.Values) string { return fn(coerce[T](v), form) }
	}
	if def.Transformer != nil {
		fn := def.Transformer
		reg.transform = func(v any) any { return fn(coerce[T](v)) }
	}
	return c.register(reg)
}

// coerce converts a stored erased value back to its declared type. A nil
// slot yields the zero value.
func coerce[T any](v any) T {
	if v == nil {
		var zero T
		return zero
	}
	t, ok := v.(T)
	if !ok {
		var zero T
		return zero
	}
	return t
}

func (c *Controller) register(reg *registration) error {
	c.mu.Lock()
	prev, exists := c.defs[reg.key]
	if exists && prev.sameConfig(reg) {
		// Idempotent: refresh the callables, nothing else moves.
		prev.validate = reg.validate
		prev.validateAsync = reg.validateAsync
		prev.cross = reg.cross
		prev.transform = reg.transform
		c.mu.Unlock()
		return nil
	}

	ns := c.snap.clone()
	if exists {
		c.replaceLocked(prev, reg, ns)
	} else {
		c.addLocked(reg, ns)
	}
	c.defs[reg.key] = reg
	c.rebuildDependentsLocked()
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
	return nil
}

func (c *Controller) addLocked(reg *registration, ns *Snapshot) {
	c.baseline[reg.key] = reg.initial
	value := reg.initial
	// Adopt a persisted value when one was loaded and still fits the type.
	if saved, ok := c.saved[reg.key]; ok {
		if adopted, ok := convertStored(saved, reg.typ); ok {
			value = adopted
		}
	}
	ns.values[reg.key] = value
	ns.dirty[reg.key] = !valuesEqual(value, reg.initial)
	if c.autoValidateAllowed(reg, ns) {
		c.runSyncValidationLocked(reg, ns)
	}
}

func (c *Controller) replaceLocked(prev, reg *registration, ns *Snapshot) {
	cur := ns.values[reg.key]
	initialChanged := !valuesEqual(prev.initial, reg.initial)
	pristine := !ns.dirty[reg.key]
	adoption := reg.adoption
	if adoption == "" {
		adoption = field.AdoptPreferLocal
	}
	c.baseline[reg.key] = reg.initial
	if initialChanged && pristine && adoption == field.AdoptPreferLocal {
		ns.values[reg.key] = reg.initial
	} else {
		ns.values[reg.key] = cur
	}
	ns.dirty[reg.key] = !valuesEqual(ns.values[reg.key], reg.initial)
	if c.autoValidateAllowed(reg, ns) {
		c.runSyncValidationLocked(reg, ns)
	}
}

// Unregister removes a field and its slot from every per-field map.
func (c *Controller) Unregister(key string) {
	c.mu.Lock()
	if _, ok := c.defs[key]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.defs, key)
	delete(c.baseline, key)
	c.cancelAsyncLocked(key)
	ns := c.snap.clone()
	delete(ns.values, key)
	delete(ns.validations, key)
	delete(ns.dirty, key)
	delete(ns.touched, key)
	delete(ns.pending, key)
	delete(ns.changed, key)
	c.rebuildDependentsLocked()
	c.snap = ns
	c.enqueueLocked(ns)
	c.mu.Unlock()
	c.drain()
}

func (c *Controller) rebuildDependentsLocked() {
	c.dependents = map[string][]string{}
	for key, reg := range c.defs {
		for _, dep := range reg.dependsOn {
			c.dependents[dep] = append(c.dependents[dep], key)
		}
	}
	for _, deps := range c.dependents {
		sort.Strings(deps)
	}
}

// RegisteredFields returns the sorted keys of all registered fields.
func (c *Controller) RegisteredFields() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.defs))
	for k := range c.defs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Close cancels timers and in-flight work and closes subscriber channels.
// The controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	for key := range c.defs {
		c.cancelAsyncLocked(key)
	}
	if c.saveTimer != nil {
		c.saveTimer.Stop()
		c.saveTimer = nil
	}
	c.mu.Unlock()

	c.notifyMu.Lock()
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	c.listeners = map[int]func(*Snapshot){}
	ws := c.waiters
	c.waiters = nil
	c.notifyMu.Unlock()
	for _, w := range ws {
		close(w)
	}
}

// valuesEqual is the value-equality used for no-op detection, dirty
// computation and bind feedback suppression.
func valuesEqual(a, b any) bool {
	return reflect.DeepEqual(a, b)
}

// convertStored adapts a deserialized value to a registration type: JSON
// numbers arrive as float64 and are narrowed when the target is numeric and
// the conversion is lossless.
func convertStored(v any, typ reflect.Type) (any, bool) {
	if v == nil {
		return nil, typ.Kind() == reflect.Pointer || typ.Kind() == reflect.Interface ||
			typ.Kind() == reflect.Map || typ.Kind() == reflect.Slice
	}
	vt := reflect.TypeOf(v)
	if vt.AssignableTo(typ) {
		return v, true
	}
	if f, ok := v.(float64); ok {
		switch typ.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if f == float64(int64(f)) {
				return reflect.ValueOf(int64(f)).Convert(typ).Interface(), true
			}
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if f >= 0 && f == float64(uint64(f)) {
				return reflect.ValueOf(uint64(f)).Convert(typ).Interface(), true
			}
		case reflect.Float32, reflect.Float64:
			return reflect.ValueOf(f).Convert(typ).Interface(), true
		}
	}
	// JSON arrays and objects decode as []any and map[string]any; rebuild
	// them element-wise when the registered type is concrete.
	if arr, ok := v.([]any); ok && typ.Kind() == reflect.Slice {
		out := reflect.MakeSlice(typ, 0, len(arr))
		for _, elem := range arr {
			converted, ok := convertStored(elem, typ.Elem())
			if !ok {
				return nil, false
			}
			if converted == nil {
				out = reflect.Append(out, reflect.Zero(typ.Elem()))
				continue
			}
			out = reflect.Append(out, reflect.ValueOf(converted))
		}
		return out.Interface(), true
	}
	if obj, ok := v.(map[string]any); ok && typ.Kind() == reflect.Map && typ.Key().Kind() == reflect.String {
		out := reflect.MakeMapWithSize(typ, len(obj))
		for k, elem := range obj {
			converted, ok := convertStored(elem, typ.Elem())
			if !ok {
				return nil, false
			}
			if converted == nil {
				out.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), reflect.Zero(typ.Elem()))
				continue
			}
			out.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), reflect.ValueOf(converted))
		}
		return out.Interface(), true
	}
	return nil, false
}
