package ecsforge

import (
	"fmt"
	"math"
	"reflect"
	"sync"
	"unsafe"

	"github.com/TheBitDrifter/bark"
)

// ComponentInfo is the registry's descriptor for one component type: size,
// alignment, an optional default-value byte string, and the lifecycle hooks
// the archetype/data-storage layers call through opaque pointers. Any hook
// may be nil; a nil Create/Destroy/AfterAssign is a no-op. A nil Move is
// replaced by a bitwise copy when Destroy is also nil (see trivial), and
// otherwise makes a move fail with MissingLifecycleFnError. The core never
// invokes Copy.
type ComponentInfo struct {
	Name    string
	Size    uintptr
	Align   uintptr
	Default []byte

	Create      func(ptr unsafe.Pointer, world *World, entity Entity)
	Destroy     func(ptr unsafe.Pointer, world *World, entity Entity)
	AfterAssign func(ptr unsafe.Pointer, world *World, entity Entity)
	Copy        func(dst, src unsafe.Pointer)
	Move        func(dst, src unsafe.Pointer)
	Compare     func(a, b unsafe.Pointer) bool // shared components only

	// trivial is true when neither Destroy nor Move was supplied, which per
	// invariant (3) permits a bitwise move on archetype transfer/swap-remove
	// instead of calling the (absent) Move hook.
	trivial bool
}

// componentIdStorage is a name -> dense-id registry shared by the component
// and shared-component namespaces: a slice of values plus a map from key to
// index, guarded by a mutex so concurrent registrations serialize and later
// readers observe the result once a call returns.
type componentIdStorage struct {
	mu      sync.RWMutex
	byName  map[string]uint32
	byType  map[reflect.Type]uint32
	entries []ComponentInfo
}

func newComponentIdStorage() *componentIdStorage {
	return &componentIdStorage{
		byName: make(map[string]uint32),
		byType: make(map[reflect.Type]uint32),
	}
}

// getOrRegister returns the dense id for name, registering info under a
// fresh id on first sight and refreshing the stored info (dynamic-reload
// scenarios) on every subsequent call with the same name. tp is the
// concrete Go type backing the component, when known at the call site
// (ForEach's reflective dispatch resolves a ComponentId back from a
// parameter's reflect.Type); it is nil for RegisterRaw's untyped path.
func (s *componentIdStorage) getOrRegister(name string, tp reflect.Type, info ComponentInfo) (uint32, error) {
	if len(info.Default) != 0 && uintptr(len(info.Default)) != info.Size {
		return 0, InvalidDefaultError{Name: name, DefaultLen: len(info.Default), Size: info.Size}
	}
	info.trivial = info.Destroy == nil && info.Move == nil

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byName[name]; ok {
		s.entries[id] = info
		return id, nil
	}
	id := uint32(len(s.entries))
	s.byName[name] = id
	if tp != nil {
		s.byType[tp] = id
	}
	s.entries = append(s.entries, info)
	return id, nil
}

func (s *componentIdStorage) idForType(tp reflect.Type) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byType[tp]
	return id, ok
}

func (s *componentIdStorage) infoOf(id uint32) (ComponentInfo, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if int(id) >= len(s.entries) {
		return ComponentInfo{}, false
	}
	return s.entries[id], true
}

func (s *componentIdStorage) count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Two process-global, disjoint counters: components and shared components
// never share an id space. SharedComponentId is a parallel namespace with
// identical semantics but distinct storage.
var (
	componentIdStorageGlobal       = newComponentIdStorage()
	sharedComponentIdStorageGlobal = newComponentIdStorage()
)

// ComponentOptions customizes the lifecycle hooks used by Register. All
// fields are optional; omitted hooks fall back to no-op (Create/Destroy/
// AfterAssign) or plain byte copy (Copy/Move, only when Destroy/Move are
// both left nil so the component remains "trivially movable").
type ComponentOptions[T any] struct {
	Default     *T
	Create      func(value *T, world *World, entity Entity)
	Destroy     func(value *T, world *World, entity Entity)
	AfterAssign func(value *T, world *World, entity Entity)
	Copy        func(dst, src *T)
	Move        func(dst, src *T)
}

func typeName[T any]() string {
	var zero T
	return reflect.TypeOf(zero).String()
}

// Register assigns (or recalls) a dense ComponentId for T, using trivial
// byte-level copy/move semantics and no create/destroy hooks.
func Register[T any]() ComponentId {
	id, err := RegisterWithOptions(ComponentOptions[T]{})
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return id
}

// RegisterWithOptions assigns (or recalls) a dense ComponentId for T with
// custom lifecycle hooks. Registration is idempotent per type name: a
// second call for the same T returns the same id and replaces the stored
// ComponentInfo (e.g. to pick up a reloaded Create hook).
func RegisterWithOptions[T any](opts ComponentOptions[T]) (ComponentId, error) {
	var zero T
	tp := reflect.TypeOf(zero)
	size := tp.Size()
	align := uintptr(tp.Align())

	var defaultBytes []byte
	if opts.Default != nil {
		src := (*[math.MaxInt32]byte)(unsafe.Pointer(opts.Default))[:size:size]
		defaultBytes = make([]byte, size)
		copy(defaultBytes, src)
	}

	info := ComponentInfo{
		Name:    typeName[T](),
		Size:    size,
		Align:   align,
		Default: defaultBytes,
	}
	if opts.Create != nil {
		f := opts.Create
		info.Create = func(ptr unsafe.Pointer, world *World, entity Entity) {
			f((*T)(ptr), world, entity)
		}
	}
	if opts.Destroy != nil {
		f := opts.Destroy
		info.Destroy = func(ptr unsafe.Pointer, world *World, entity Entity) {
			f((*T)(ptr), world, entity)
		}
	}
	if opts.AfterAssign != nil {
		f := opts.AfterAssign
		info.AfterAssign = func(ptr unsafe.Pointer, world *World, entity Entity) {
			f((*T)(ptr), world, entity)
		}
	}
	if opts.Copy != nil {
		f := opts.Copy
		info.Copy = func(dst, src unsafe.Pointer) { f((*T)(dst), (*T)(src)) }
	}
	if opts.Move != nil {
		f := opts.Move
		info.Move = func(dst, src unsafe.Pointer) { f((*T)(dst), (*T)(src)) }
	}

	id, err := componentIdStorageGlobal.getOrRegister(info.Name, tp, info)
	return ComponentId(id), err
}

// RegisterRaw registers a component directly from a caller-built
// ComponentInfo: the opaque-byte-blob path, where only a registered
// component info descriptor makes a component id meaningful. Prefer
// Register/RegisterWithOptions for concrete Go types; RegisterRaw exists for
// hosts that define components dynamically (e.g. scripting bindings) where
// no compile-time T is available.
func RegisterRaw(info ComponentInfo) (ComponentId, error) {
	id, err := componentIdStorageGlobal.getOrRegister(info.Name, nil, info)
	return ComponentId(id), err
}

// InfoOf returns the descriptor registered for id.
func InfoOf(id ComponentId) (ComponentInfo, bool) {
	return componentIdStorageGlobal.infoOf(uint32(id))
}

// RegisteredComponentCount returns the number of distinct component types
// registered so far; ids are always a dense [0, RegisteredComponentCount)
// prefix.
func RegisteredComponentCount() int {
	return componentIdStorageGlobal.count()
}

// SharedRegister assigns (or recalls) a dense SharedComponentId for T in
// the shared-component namespace.
func SharedRegister[T any]() SharedComponentId {
	var zero T
	tp := reflect.TypeOf(zero)
	info := ComponentInfo{
		Name:  typeName[T](),
		Size:  tp.Size(),
		Align: uintptr(tp.Align()),
	}
	id, err := sharedComponentIdStorageGlobal.getOrRegister(info.Name, tp, info)
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return SharedComponentId(id)
}

// SharedInfoOf returns the descriptor registered for a SharedComponentId.
func SharedInfoOf(id SharedComponentId) (ComponentInfo, bool) {
	return sharedComponentIdStorageGlobal.infoOf(uint32(id))
}

func componentTypeLabel(id ComponentId) string {
	if info, ok := InfoOf(id); ok {
		return info.Name
	}
	return fmt.Sprintf("component#%d", id)
}

// componentIdForType resolves a component's registered ComponentId from its
// concrete Go type, the reverse lookup ForEach needs to turn a callback
// parameter's pointer type into a ComponentId.
func componentIdForType(tp reflect.Type) (ComponentId, bool) {
	id, ok := componentIdStorageGlobal.idForType(tp)
	return ComponentId(id), ok
}
