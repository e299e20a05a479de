package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// MaxCallStackSize limits recursion inside a hook.
const MaxCallStackSize = 500

const interruptTimeout = "execution timeout"

// sandbox is one hardened VM serving a single hook invocation.
type sandbox struct {
	vm   *goja.Runtime
	code *definition.HookCode
	src  *source
}

func newSandbox(code *definition.HookCode) *sandbox {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())
	vm.SetMaxCallStackSize(MaxCallStackSize)

	s := &sandbox{vm: vm, code: code}
	s.harden()
	s.bindConsole()
	return s
}

// frozenPrototypes cannot be modified by hooks.
var frozenPrototypes = []string{"Object", "Array", "String", "Number", "Boolean"}

// harden removes eval and freezes the builtin prototypes so one invocation
// cannot leak state into shared objects.
func (s *sandbox) harden() {
	s.vm.Set("eval", goja.Undefined())

	freeze, ok := goja.AssertFunction(s.vm.Get("Object").ToObject(s.vm).Get("freeze"))
	if !ok {
		return
	}
	for _, name := range frozenPrototypes {
		ctor := s.vm.Get(name)
		if ctor == nil {
			continue
		}
		_, _ = freeze(goja.Undefined(), ctor.ToObject(s.vm).Get("prototype"))
	}
}

func (s *sandbox) bindConsole() {
	console := s.vm.NewObject()
	logAt := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, a := range call.Arguments {
				parts[i] = a.String()
			}
			slog.Log(context.Background(), level, strings.Join(parts, " "), "hook", hookName(s.code))
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logAt(slog.LevelInfo))
	_ = console.Set("info", logAt(slog.LevelInfo))
	_ = console.Set("debug", logAt(slog.LevelDebug))
	_ = console.Set("warn", logAt(slog.LevelWarn))
	_ = console.Set("error", logAt(slog.LevelError))
	s.vm.Set("console", console)
}

// guard interrupts the VM when timeout passes or ctx is done.
func (s *sandbox) guard(ctx context.Context, timeout time.Duration) func() {
	timer := time.AfterFunc(timeout, func() {
		s.vm.Interrupt(interruptTimeout)
	})
	stopCtx := context.AfterFunc(ctx, func() {
		s.vm.Interrupt(ctx.Err())
	})
	return func() {
		timer.Stop()
		stopCtx()
	}
}

// function runs the compiled program of src and returns the hook function.
func (s *sandbox) function(src *source) (goja.Callable, error) {
	s.src = src
	v, err := s.vm.RunProgram(src.program)
	if err != nil {
		return nil, err
	}
	if src.export != "" {
		v, err = s.exported(v, src.export)
		if err != nil {
			return nil, err
		}
	}
	fn, ok := goja.AssertFunction(v)
	if !ok {
		return nil, alerr.Newf(alerr.ErrJSExecution, "hook %q is not a function", hookName(s.code))
	}
	return fn, nil
}

// exported loads a module program and picks name from its exports, falling
// back to a top-level function of that name.
func (s *sandbox) exported(loader goja.Value, name string) (goja.Value, error) {
	load, ok := goja.AssertFunction(loader)
	if !ok {
		return nil, alerr.New(alerr.EInternalError, "module wrapper is not a function")
	}
	module := s.vm.NewObject()
	exports := s.vm.NewObject()
	_ = module.Set("exports", exports)
	local, err := load(goja.Undefined(), module, exports)
	if err != nil {
		return nil, err
	}
	if ex := module.Get("exports"); ex != nil && !goja.IsUndefined(ex) && !goja.IsNull(ex) {
		if v := ex.ToObject(s.vm).Get(name); v != nil && !goja.IsUndefined(v) {
			return v, nil
		}
	}
	if local != nil && !goja.IsUndefined(local) {
		return local, nil
	}
	return nil, alerr.Newf(alerr.ErrJSExecution, "hook source does not export %q", name).
		WithHelp(fmt.Sprintf("add `module.exports.%s = function(args, ctx) { ... }`", name))
}

// settle exports the hook result, resolving a returned Promise.
func (s *sandbox) settle(ctx context.Context, v goja.Value, timeout time.Duration) (any, error) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v.Export(), nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return s.settle(ctx, p.Result(), timeout)
	case goja.PromiseStateRejected:
		return nil, s.thrown(p.Result())
	}
	return nil, alerr.Newf(alerr.ErrJSExecution, "hook %q returned a promise that never settled", hookName(s.code)).
		WithNote("hooks cannot wait for timers or I/O")
}

// fail converts an invocation error.
func (s *sandbox) fail(ctx context.Context, err error, timeout time.Duration) error {
	if _, ok := err.(*alerr.Error); ok {
		return err
	}
	if interrupted, ok := err.(*goja.InterruptedError); ok {
		if ctxErr, ok := interrupted.Value().(error); ok {
			return alerr.Wrap(alerr.ErrJSExecution, ctxErr, "hook execution canceled")
		}
		timeoutErr := alerr.New(alerr.ErrJSTimeout, "hook execution timed out").
			With("timeout", timeout.String()).
			With("hook", hookName(s.code))
		if s.src != nil && s.src.text.file != "" {
			timeoutErr.WithFile(s.src.text.file, 0)
		}
		return timeoutErr
	}
	if exc, ok := err.(*goja.Exception); ok {
		if biz := s.business(exc.Value()); biz != nil {
			return biz
		}
	}
	var text hookText
	if s.src != nil {
		text = s.src.text
	}
	return hookError(err, "hook execution failed", text).
		With("hook", hookName(s.code))
}

// thrown converts a rejection reason.
func (s *sandbox) thrown(reason goja.Value) error {
	if biz := s.business(reason); biz != nil {
		return biz
	}
	return alerr.Newf(alerr.ErrJSExecution, "hook rejected: %s", reason.String()).
		With("hook", hookName(s.code))
}

// business reads a thrown {status, message} object.
func (s *sandbox) business(v goja.Value) error {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	status := obj.Get("status")
	if status == nil || goja.IsUndefined(status) || goja.IsNull(status) {
		return nil
	}
	code, ok := status.Export().(int64)
	if !ok {
		if f, isFloat := status.Export().(float64); isFloat {
			code, ok = int64(f), true
		}
	}
	if !ok {
		return nil
	}
	msg := ""
	if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) && !goja.IsNull(m) {
		msg = m.String()
	}
	return alerr.NewBusiness(int(code), msg).With("hook", hookName(s.code))
}

// wrapInline turns an inline body into a function expression. The body shares
// the first line with the wrapper so reported lines match the blueprint.
func wrapInline(body string) string {
	return "(function(args, ctx) {" + body + "\n})"
}

var jsIdent = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// wrapModule turns a source file into a CommonJS style loader. The loader
// returns the top-level function named target, if the file declares one.
func wrapModule(src, target string) string {
	local := "undefined"
	if jsIdent.MatchString(target) {
		local = `(typeof ` + target + ` === "function" ? ` + target + ` : undefined)`
	}
	return "(function(module, exports) {" + src + "\n;return " + local + ";\n})"
}

func hookName(code *definition.HookCode) string {
	if code == nil {
		return ""
	}
	if code.Kind == definition.HookSource {
		return code.File + "#" + code.Target
	}
	return "inline"
}
