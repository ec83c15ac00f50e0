package dialog

import "sync"

// Controller открывает и закрывает окна. Окно конфликта открывается поверх
// карточки задачи, закрытие возвращает к предыдущему окну.
type Controller interface {
	Open(d Dialog)
	Close()
	// CloseTask закрывает все окна задачи, например после её удаления.
	CloseTask(taskID uint)
	Current() (Dialog, bool)
}

// Stack - Controller в памяти. OnChange вызывается после каждого изменения
// с текущим окном (nil, если окон нет).
type Stack struct {
	mu       sync.Mutex
	stack    []Dialog
	onChange func(Dialog)
}

func NewStack(onChange func(Dialog)) *Stack {
	return &Stack{onChange: onChange}
}

func (s *Stack) Open(d Dialog) {
	s.mu.Lock()
	// повторное окно того же вида для той же задачи заменяет старое
	if n := len(s.stack); n > 0 && s.stack[n-1].Kind() == d.Kind() && s.stack[n-1].TaskID() == d.TaskID() {
		s.stack[n-1] = d
	} else {
		s.stack = append(s.stack, d)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Stack) Close() {
	s.mu.Lock()
	if len(s.stack) > 0 {
		s.stack = s.stack[:len(s.stack)-1]
	}
	s.mu.Unlock()
	s.notify()
}

func (s *Stack) CloseTask(taskID uint) {
	s.mu.Lock()
	kept := s.stack[:0]
	for _, d := range s.stack {
		if d.TaskID() != taskID {
			kept = append(kept, d)
		}
	}
	s.stack = kept
	s.mu.Unlock()
	s.notify()
}

func (s *Stack) Current() (Dialog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.stack) == 0 {
		return nil, false
	}
	return s.stack[len(s.stack)-1], true
}

// Depth - сколько окон открыто.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

func (s *Stack) notify() {
	if s.onChange == nil {
		return
	}
	d, _ := s.Current()
	s.onChange(d)
}
