package websocket

// Semaphore caps concurrently open pass-through connections. A non-positive
// limit means unlimited.
type Semaphore struct {
	connections chan struct{}
}

func NewSemaphore(maxConnections int) *Semaphore {
	if maxConnections <= 0 {
		return &Semaphore{}
	}
	return &Semaphore{
		connections: make(chan struct{}, maxConnections),
	}
}

func (s *Semaphore) Acquire() bool {
	if s == nil || s.connections == nil {
		return true
	}
	select {
	case s.connections <- struct{}{}:
		return true
	default:
		return false
	}
}

func (s *Semaphore) Release() {
	if s == nil || s.connections == nil {
		return
	}
	select {
	case <-s.connections:
	default:
	}
}

func (s *Semaphore) InUse() int {
	if s == nil {
		return 0
	}
	return len(s.connections)
}
