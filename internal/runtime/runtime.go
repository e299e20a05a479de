// Package runtime runs blueprint hooks in a hardened JavaScript sandbox.
//
// Every invocation gets a fresh Goja VM. Compiled programs are immutable and
// cached per hook source, so concurrent requests share nothing mutable.
package runtime

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/gauditech/gaudi-sub004/internal/alerr"
	"github.com/gauditech/gaudi-sub004/internal/definition"
)

// DefaultTimeout bounds a single hook invocation.
const DefaultTimeout = 5 * time.Second

// HookRunner invokes hook code of one Definition.
type HookRunner struct {
	runtimes map[string]*definition.RuntimeDef
	fallback string
	baseDir  string
	timeout  time.Duration

	mu       sync.Mutex
	programs map[string]*goja.Program
}

// Option configures a HookRunner.
type Option func(*HookRunner)

// WithTimeout sets the per-invocation timeout.
func WithTimeout(d time.Duration) Option {
	return func(r *HookRunner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithBaseDir resolves relative runtime source paths against dir.
func WithBaseDir(dir string) Option {
	return func(r *HookRunner) { r.baseDir = dir }
}

// NewHookRunner creates a runner for the runtimes of def.
func NewHookRunner(def *definition.Definition, opts ...Option) *HookRunner {
	r := &HookRunner{
		runtimes: map[string]*definition.RuntimeDef{},
		timeout:  DefaultTimeout,
		programs: map[string]*goja.Program{},
	}
	if def != nil {
		for _, rt := range def.Runtimes {
			r.runtimes[rt.Name] = rt
			if rt.Default {
				r.fallback = rt.Name
			}
		}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Timeout returns the per-invocation timeout.
func (r *HookRunner) Timeout() time.Duration {
	return r.timeout
}

// Reset drops every compiled program so changed source files are read again.
func (r *HookRunner) Reset() {
	r.mu.Lock()
	r.programs = map[string]*goja.Program{}
	r.mu.Unlock()
}

// Invoke runs code with args and returns the exported result. A hook may
// return a Promise; it is settled before Invoke returns. A thrown object with
// a numeric status becomes a business error carrying that status.
func (r *HookRunner) Invoke(ctx context.Context, code *definition.HookCode, args map[string]any) (any, error) {
	if code == nil {
		return nil, alerr.New(alerr.EInternalError, "hook has no code")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := r.load(code)
	if err != nil {
		return nil, err
	}

	sb := newSandbox(code)
	stop := sb.guard(ctx, r.timeout)
	defer stop()

	fn, err := sb.function(src)
	if err != nil {
		return nil, sb.fail(ctx, err, r.timeout)
	}
	if args == nil {
		args = map[string]any{}
	}
	v, err := fn(goja.Undefined(), sb.vm.ToValue(args), sb.vm.ToValue(hookContext(ctx, code)))
	if err != nil {
		return nil, sb.fail(ctx, err, r.timeout)
	}
	return sb.settle(ctx, v, r.timeout)
}

// source is a compiled hook: the program and what it was compiled from.
type source struct {
	program *goja.Program
	text    hookText
	export  string // module export to call; empty for inline hooks
}

// load returns the compiled program of code, compiling it on first use.
func (r *HookRunner) load(code *definition.HookCode) (*source, error) {
	switch code.Kind {
	case definition.HookInline:
		wrapped := wrapInline(code.Inline)
		p, err := r.compile("inline:"+code.Inline, "inline", wrapped)
		if err != nil {
			return nil, err
		}
		return &source{program: p, text: hookText{code: wrapped}}, nil

	case definition.HookSource:
		path, err := r.sourceFile(code)
		if err != nil {
			return nil, err
		}
		key := "file:" + path + "#" + code.Target
		r.mu.Lock()
		p, ok := r.programs[key]
		r.mu.Unlock()
		if !ok {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, alerr.Wrap(alerr.ErrJSExecution, err, "failed to read hook source").
					WithFile(path, 0)
			}
			if p, err = r.compile(key, path, wrapModule(string(data), code.Target)); err != nil {
				return nil, err
			}
		}
		return &source{program: p, text: hookText{file: path}, export: code.Target}, nil
	}
	return nil, alerr.Newf(alerr.EInternalError, "unknown hook kind %q", code.Kind)
}

func (r *HookRunner) compile(key, name, src string) (*goja.Program, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.programs[key]; ok {
		return p, nil
	}
	p, err := goja.Compile(name, src, true)
	if err != nil {
		text := hookText{code: src}
		if name != "inline" {
			text = hookText{file: name}
		}
		return nil, hookError(err, "failed to compile hook", text)
	}
	r.programs[key] = p
	return p, nil
}

// sourceFile resolves the file of a source hook inside its runtime.
func (r *HookRunner) sourceFile(code *definition.HookCode) (string, error) {
	name := code.RuntimeName
	if name == "" {
		name = r.fallback
	}
	rt, ok := r.runtimes[name]
	if !ok {
		return "", alerr.Newf(alerr.EInternalError, "hook runtime %q is not defined", name)
	}
	dir := rt.SourcePath
	if !filepath.IsAbs(dir) && r.baseDir != "" {
		dir = filepath.Join(r.baseDir, dir)
	}
	return filepath.Join(dir, filepath.FromSlash(code.File)), nil
}

// -----------------------------------------------------------------------------
// Hook context
// -----------------------------------------------------------------------------

type contextKey struct{}

// WithValues attaches values hooks see as properties of their ctx argument.
func WithValues(ctx context.Context, values map[string]any) context.Context {
	merged := map[string]any{}
	if prev, ok := ctx.Value(contextKey{}).(map[string]any); ok {
		for k, v := range prev {
			merged[k] = v
		}
	}
	for k, v := range values {
		merged[k] = v
	}
	return context.WithValue(ctx, contextKey{}, merged)
}

func hookContext(ctx context.Context, code *definition.HookCode) map[string]any {
	out := map[string]any{}
	if values, ok := ctx.Value(contextKey{}).(map[string]any); ok {
		for k, v := range values {
			out[k] = v
		}
	}
	if code.Kind == definition.HookSource {
		out["hook"] = code.Target
	}
	return out
}
