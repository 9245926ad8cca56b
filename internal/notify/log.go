package notify

import "sync"

const DefaultLogSize = 50

// Log: ограниченный список уведомлений одной сессии, новые сверху. Живёт в памяти.
type Log struct {
	mu    sync.Mutex
	size  int
	items []Notification
}

func NewLog(size int) *Log {
	if size <= 0 {
		size = DefaultLogSize
	}
	return &Log{size: size}
}

// Add кладёт уведомление в начало, самое старое вытесняется при переполнении.
func (l *Log) Add(n Notification) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n.Read = false
	items := make([]Notification, 0, min(len(l.items)+1, l.size))
	items = append(items, n)
	for _, it := range l.items {
		if len(items) == l.size {
			break
		}
		items = append(items, it)
	}
	l.items = items
}

// MarkRead возвращает false, если id в логе нет.
func (l *Log) MarkRead(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		if l.items[i].ID == id {
			l.items[i].Read = true
			return true
		}
	}
	return false
}

func (l *Log) MarkAllRead() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.items {
		l.items[i].Read = true
	}
}

func (l *Log) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

func (l *Log) Unread() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, it := range l.items {
		if !it.Read {
			n++
		}
	}
	return n
}

// Items: копия содержимого.
func (l *Log) Items() []Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Notification, len(l.items))
	copy(out, l.items)
	return out
}
