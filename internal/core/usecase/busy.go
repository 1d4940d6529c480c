package usecase

import "sync"

// BusyState is the "resubmission disabled" condition of the UI. Every Enter
// returns a release func that must run on every exit path. The state stays
// busy while any holder is live, so a report action finishing during a
// running job does not re-enable submission. A replaced job releases its
// holder when its poll session ends.
type BusyState struct {
	mu       sync.Mutex
	holders  int
	onChange func(busy bool)
}

func NewBusyState(onChange func(busy bool)) *BusyState {
	return &BusyState{onChange: onChange}
}

func (b *BusyState) Enter() (release func()) {
	b.mu.Lock()
	b.holders++
	if b.holders == 1 {
		b.notify(true)
	}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.holders--
			if b.holders == 0 {
				b.notify(false)
			}
		})
	}
}

func (b *BusyState) Busy() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.holders > 0
}

func (b *BusyState) notify(busy bool) {
	if b.onChange != nil {
		b.onChange(busy)
	}
}
