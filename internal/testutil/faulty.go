package testutil

import (
	"context"
	"errors"
	"io"
	"sync"

	"gallery-go/internal/gallery"
	"gallery-go/internal/model"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault")

// Op names a vault or slot operation that can be made to fail.
type Op string

const (
	OpPut    Op = "put"
	OpStat   Op = "stat"
	OpOpen   Op = "open"
	OpDelete Op = "delete"
	OpList   Op = "list"
	OpLoad   Op = "load"
	OpSave   Op = "save"
)

// Fault describes how an operation fails.
type Fault struct {
	// Err is returned by the operation. Defaults to ErrInjected.
	Err error
	// AfterBytes lets a Put deliver this many bytes to the wrapped vault before
	// failing, so partial writes reach the real implementation.
	AfterBytes int64
	// Times limits the fault to the next n calls. Zero means until cleared.
	Times int
}

type faults struct {
	mu    sync.Mutex
	rules map[Op]Fault
	calls map[Op]int
}

func (f *faults) set(op Op, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.rules == nil {
		f.rules = make(map[Op]Fault)
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	f.rules[op] = fault
}

func (f *faults) clear(op Op) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, op)
}

// check records a call and returns the active fault for op, if any.
func (f *faults) check(op Op) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[Op]int)
	}
	f.calls[op]++

	fault, ok := f.rules[op]
	if !ok {
		return Fault{}, false
	}
	if fault.Times > 0 {
		fault.Times--
		if fault.Times == 0 {
			delete(f.rules, op)
		} else {
			f.rules[op] = fault
		}
	}
	return fault, true
}

func (f *faults) count(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// FaultyVault wraps a gallery.Vault and injects errors per operation.
type FaultyVault struct {
	gallery.Vault
	faults faults
}

// NewFaultyVault wraps v.
func NewFaultyVault(v gallery.Vault) *FaultyVault {
	return &FaultyVault{Vault: v}
}

// Fail makes op fail as described by fault.
func (f *FaultyVault) Fail(op Op, fault Fault) { f.faults.set(op, fault) }

// Heal removes the fault on op.
func (f *FaultyVault) Heal(op Op) { f.faults.clear(op) }

// Calls returns how often op was invoked.
func (f *FaultyVault) Calls(op Op) int { return f.faults.count(op) }

func (f *FaultyVault) Put(ctx context.Context, name string, r io.Reader) error {
	fault, ok := f.faults.check(OpPut)
	if !ok {
		return f.Vault.Put(ctx, name, r)
	}
	if fault.AfterBytes > 0 {
		return f.Vault.Put(ctx, name, &failingReader{r: r, left: fault.AfterBytes, err: fault.Err})
	}
	return fault.Err
}

func (f *FaultyVault) Stat(ctx context.Context, name string) (model.BlobInfo, error) {
	if fault, ok := f.faults.check(OpStat); ok {
		return model.BlobInfo{}, fault.Err
	}
	return f.Vault.Stat(ctx, name)
}

func (f *FaultyVault) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if fault, ok := f.faults.check(OpOpen); ok {
		return nil, fault.Err
	}
	return f.Vault.Open(ctx, name)
}

func (f *FaultyVault) Delete(ctx context.Context, name string) error {
	if fault, ok := f.faults.check(OpDelete); ok {
		return fault.Err
	}
	return f.Vault.Delete(ctx, name)
}

func (f *FaultyVault) List(ctx context.Context) ([]string, error) {
	if fault, ok := f.faults.check(OpList); ok {
		return nil, fault.Err
	}
	return f.Vault.List(ctx)
}

// failingReader passes through left bytes, then fails.
type failingReader struct {
	r    io.Reader
	left int64
	err  error
}

func (fr *failingReader) Read(p []byte) (int, error) {
	if fr.left <= 0 {
		return 0, fr.err
	}
	if int64(len(p)) > fr.left {
		p = p[:fr.left]
	}
	n, err := fr.r.Read(p)
	fr.left -= int64(n)
	if err == io.EOF {
		return n, fr.err
	}
	return n, err
}

// FaultySlot wraps a gallery.IndexSlot and injects errors on Load and Save.
type FaultySlot struct {
	gallery.IndexSlot
	faults faults
}

// NewFaultySlot wraps s.
func NewFaultySlot(s gallery.IndexSlot) *FaultySlot {
	return &FaultySlot{IndexSlot: s}
}

// Fail makes op (OpLoad or OpSave) fail as described by fault.
func (f *FaultySlot) Fail(op Op, fault Fault) { f.faults.set(op, fault) }

// Heal removes the fault on op.
func (f *FaultySlot) Heal(op Op) { f.faults.clear(op) }

// Calls returns how often op was invoked.
func (f *FaultySlot) Calls(op Op) int { return f.faults.count(op) }

func (f *FaultySlot) Load(ctx context.Context) ([]byte, error) {
	if fault, ok := f.faults.check(OpLoad); ok {
		return nil, fault.Err
	}
	return f.IndexSlot.Load(ctx)
}

func (f *FaultySlot) Save(ctx context.Context, doc []byte) error {
	if fault, ok := f.faults.check(OpSave); ok {
		return fault.Err
	}
	return f.IndexSlot.Save(ctx, doc)
}
