// Package speculative хранит подтвержденные сервером значения и поверх них
// незавершенные локальные изменения. Каждое изменение имеет ID операции
// и либо подтверждается ответом сервера, либо откатывается.
package speculative

import (
	"errors"
	"sync"
)

var (
	ErrUnknownKey       = errors.New("speculative: unknown key")
	ErrUnknownOperation = errors.New("speculative: unknown operation")
	ErrDuplicateOp      = errors.New("speculative: operation already pending")
)

type op[K comparable, V any] struct {
	id  string
	key K
	fn  func(V) V
}

// Store видит значение как подтвержденное плюс все ожидающие операции по ключу
// в порядке применения. Откат убирает операцию, а не восстанавливает снимок,
// поэтому свежие данные с сервера, пришедшие во время операции, не теряются.
type Store[K comparable, V any] struct {
	mu      sync.RWMutex
	keyOf   func(V) K
	base    map[K]V
	order   []K
	pending []op[K, V]
}

// New создает пустое хранилище. keyOf извлекает ключ из значения.
func New[K comparable, V any](keyOf func(V) K) *Store[K, V] {
	return &Store[K, V]{keyOf: keyOf, base: make(map[K]V)}
}

// Replace заменяет подтвержденные значения. Ожидающие операции остаются поверх.
func (s *Store[K, V]) Replace(all []V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.base = make(map[K]V, len(all))
	s.order = s.order[:0]
	for _, v := range all {
		k := s.keyOf(v)
		if _, dup := s.base[k]; !dup {
			s.order = append(s.order, k)
		}
		s.base[k] = v
	}
}

// Apply применяет fn к значению key до ответа сервера.
func (s *Store[K, V]) Apply(opID string, key K, fn func(V) V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.base[key]; !ok {
		return ErrUnknownKey
	}
	if s.find(opID) >= 0 {
		return ErrDuplicateOp
	}
	s.pending = append(s.pending, op[K, V]{id: opID, key: key, fn: fn})
	return nil
}

// Commit снимает операцию и записывает значение, которое вернул сервер.
func (s *Store[K, V]) Commit(opID string, value V) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(opID)
	if i < 0 {
		return ErrUnknownOperation
	}
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	s.put(value)
	return nil
}

// Upsert записывает подтвержденное значение вне операций.
func (s *Store[K, V]) Upsert(value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(value)
}

func (s *Store[K, V]) put(value V) {
	k := s.keyOf(value)
	if _, ok := s.base[k]; !ok {
		s.order = append(s.order, k)
	}
	s.base[k] = value
}

// Rollback снимает операцию без изменения подтвержденного значения.
func (s *Store[K, V]) Rollback(opID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(opID)
	if i < 0 {
		return ErrUnknownOperation
	}
	s.pending = append(s.pending[:i], s.pending[i+1:]...)
	return nil
}

// Delete убирает ключ вместе с его ожидающими операциями.
func (s *Store[K, V]) Delete(key K) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.base, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	kept := s.pending[:0]
	for _, o := range s.pending {
		if o.key != key {
			kept = append(kept, o)
		}
	}
	s.pending = kept
}

func (s *Store[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.base[key]
	if !ok {
		return v, false
	}
	return s.view(key, v), true
}

// List возвращает значения в порядке последнего Replace.
func (s *Store[K, V]) List() []V {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]V, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.view(k, s.base[k]))
	}
	return out
}

// Pending - число неподтвержденных операций.
func (s *Store[K, V]) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.pending)
}

func (s *Store[K, V]) view(key K, v V) V {
	for _, o := range s.pending {
		if o.key == key {
			v = o.fn(v)
		}
	}
	return v
}

func (s *Store[K, V]) find(opID string) int {
	for i, o := range s.pending {
		if o.id == opID {
			return i
		}
	}
	return -1
}
