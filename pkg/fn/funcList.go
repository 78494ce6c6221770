package fn

import "sync"

// FuncList collects close functions, executed in reverse order of addition.
type FuncList struct {
	mutex sync.Mutex
	fns   []func()
}

func (f *FuncList) AddFunc(fn func()) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.fns = append(f.fns, fn)
}

// Execute calls the collected functions once, last added first.
func (f *FuncList) Execute() {
	f.mutex.Lock()
	fns := f.fns
	f.fns = nil
	f.mutex.Unlock()
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
