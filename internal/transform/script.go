package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/Ankita-Hegde/AI-Pipeline-Assistant-DDE/pkg/connector"
)

var (
	errMissingTransform = errors.New("transform function not found in script")
	errNotFunction      = errors.New("transform is not a function")
)

// scriptRunner calls a user-supplied transform(record) function. A goja
// runtime is not goroutine-safe, so a runner belongs to a single Apply call.
type scriptRunner struct {
	vm          *goja.Runtime
	fn          goja.Callable
	interruptMu sync.Mutex
}

func newScriptRunner(src string) (*scriptRunner, error) {
	if len(src) > MaxScriptLength {
		return nil, fmt.Errorf("script exceeds maximum length: %d bytes exceeds maximum %d bytes", len(src), MaxScriptLength)
	}
	vm := goja.New()
	if _, err := vm.RunString(src); err != nil {
		return nil, fmt.Errorf("script compilation failed: %w", err)
	}
	v := vm.Get("transform")
	if v == nil || goja.IsUndefined(v) {
		return nil, errMissingTransform
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, errNotFunction
	}
	return &scriptRunner{vm: vm, fn: fn}, nil
}

// call runs transform on one record. keep is false when the script returned
// null or undefined.
func (s *scriptRunner) call(ctx context.Context, rec connector.Record, idx int) (out connector.Record, keep bool, err error) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.interruptMu.Lock()
			s.vm.Interrupt(ctx.Err().Error())
			s.interruptMu.Unlock()
		case <-done:
		}
	}()

	res, err := s.fn(goja.Undefined(), s.vm.ToValue(connector.CloneMap(rec)))
	s.interruptMu.Lock()
	s.vm.ClearInterrupt()
	s.interruptMu.Unlock()
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		var jsErr *goja.Exception
		if errors.As(err, &jsErr) {
			return nil, false, fmt.Errorf("script failed at record %d: %v", idx, jsErr.Value())
		}
		return nil, false, fmt.Errorf("script failed at record %d: %w", idx, err)
	}

	if res == nil || goja.IsUndefined(res) || goja.IsNull(res) {
		return nil, false, nil
	}
	if obj, ok := res.(*goja.Object); ok && obj.ClassName() == "Array" {
		return nil, false, fmt.Errorf("script at record %d returned an array, transform must return an object", idx)
	}
	m, ok := res.Export().(map[string]any)
	if !ok {
		return nil, false, fmt.Errorf("script at record %d returned %T, transform must return an object", idx, res.Export())
	}
	return m, true, nil
}
