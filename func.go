package awaitable

import (
	"context"
	"reflect"
	"runtime"
	"strings"

	"github.com/Swind/go-awaitable/core"
)

// =============================================================================
// Wrapped functions
// =============================================================================

// binding is what every wrapped function carries besides the function itself.
type binding struct {
	name      string
	qualified string
	pool      core.Executor
}

func newBinding(d *Decorator, fn any) binding {
	qualified := funcName(fn)
	return binding{
		name:      shortFuncName(qualified),
		qualified: qualified,
		pool:      d.pool,
	}
}

// Name returns the short name of the wrapped function, e.g. "fetch" or
// "TestX.func1" for a closure.
func (b binding) Name() string { return b.name }

// QualifiedName returns the full runtime symbol of the wrapped function.
func (b binding) QualifiedName() string { return b.qualified }

// Pool returns the executor calls are submitted to.
func (b binding) Pool() core.Executor { return b.pool }

func funcName(fn any) string {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return ""
	}
	rf := runtime.FuncForPC(v.Pointer())
	if rf == nil {
		return ""
	}
	return rf.Name()
}

// shortFuncName drops the import path and package name from a runtime symbol.
func shortFuncName(qualified string) string {
	name := qualified
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	// Method values are suffixed by the compiler.
	return strings.TrimSuffix(name, "-fm")
}

// Func0 is a wrapped func(ctx) (R, error).
type Func0[R any] struct {
	binding
	fn func(context.Context) (R, error)
}

// Wrap0 binds fn to d's pool.
func Wrap0[R any](d *Decorator, fn func(context.Context) (R, error)) *Func0[R] {
	return &Func0[R]{binding: newBinding(d, fn), fn: fn}
}

// Call submits fn and returns its future without waiting.
func (f *Func0[R]) Call(ctx context.Context) *core.Future[R] {
	return core.SubmitNamed[R](f.pool, ctx, f.name, f.fn)
}

// Unwrap returns the original function.
func (f *Func0[R]) Unwrap() func(context.Context) (R, error) { return f.fn }

// Func1 is a wrapped func(ctx, A) (R, error).
type Func1[A, R any] struct {
	binding
	fn func(context.Context, A) (R, error)
}

// Wrap1 binds fn to d's pool.
func Wrap1[A, R any](d *Decorator, fn func(context.Context, A) (R, error)) *Func1[A, R] {
	return &Func1[A, R]{binding: newBinding(d, fn), fn: fn}
}

// Call submits fn(ctx, a) and returns its future without waiting.
func (f *Func1[A, R]) Call(ctx context.Context, a A) *core.Future[R] {
	return core.SubmitNamed[R](f.pool, ctx, f.name, func(ctx context.Context) (R, error) {
		return f.fn(ctx, a)
	})
}

// Unwrap returns the original function.
func (f *Func1[A, R]) Unwrap() func(context.Context, A) (R, error) { return f.fn }

// Func2 is a wrapped func(ctx, A, B) (R, error).
type Func2[A, B, R any] struct {
	binding
	fn func(context.Context, A, B) (R, error)
}

// Wrap2 binds fn to d's pool.
func Wrap2[A, B, R any](d *Decorator, fn func(context.Context, A, B) (R, error)) *Func2[A, B, R] {
	return &Func2[A, B, R]{binding: newBinding(d, fn), fn: fn}
}

// Call submits fn(ctx, a, b) and returns its future without waiting.
func (f *Func2[A, B, R]) Call(ctx context.Context, a A, b B) *core.Future[R] {
	return core.SubmitNamed[R](f.pool, ctx, f.name, func(ctx context.Context) (R, error) {
		return f.fn(ctx, a, b)
	})
}

// Unwrap returns the original function.
func (f *Func2[A, B, R]) Unwrap() func(context.Context, A, B) (R, error) { return f.fn }

// Func3 is a wrapped func(ctx, A, B, C) (R, error).
type Func3[A, B, C, R any] struct {
	binding
	fn func(context.Context, A, B, C) (R, error)
}

// Wrap3 binds fn to d's pool.
func Wrap3[A, B, C, R any](d *Decorator, fn func(context.Context, A, B, C) (R, error)) *Func3[A, B, C, R] {
	return &Func3[A, B, C, R]{binding: newBinding(d, fn), fn: fn}
}

// Call submits fn(ctx, a, b, c) and returns its future without waiting.
func (f *Func3[A, B, C, R]) Call(ctx context.Context, a A, b B, c C) *core.Future[R] {
	return core.SubmitNamed[R](f.pool, ctx, f.name, func(ctx context.Context) (R, error) {
		return f.fn(ctx, a, b, c)
	})
}

// Unwrap returns the original function.
func (f *Func3[A, B, C, R]) Unwrap() func(context.Context, A, B, C) (R, error) { return f.fn }

// FuncVariadic is a wrapped func(ctx, ...A) (R, error).
type FuncVariadic[A, R any] struct {
	binding
	fn func(context.Context, ...A) (R, error)
}

// WrapVariadic binds fn to d's pool.
func WrapVariadic[A, R any](d *Decorator, fn func(context.Context, ...A) (R, error)) *FuncVariadic[A, R] {
	return &FuncVariadic[A, R]{binding: newBinding(d, fn), fn: fn}
}

// Call submits fn(ctx, args...) and returns its future without waiting.
// args is copied, so the caller may reuse the slice.
func (f *FuncVariadic[A, R]) Call(ctx context.Context, args ...A) *core.Future[R] {
	args = append([]A(nil), args...)
	return core.SubmitNamed[R](f.pool, ctx, f.name, func(ctx context.Context) (R, error) {
		return f.fn(ctx, args...)
	})
}

// Unwrap returns the original function.
func (f *FuncVariadic[A, R]) Unwrap() func(context.Context, ...A) (R, error) { return f.fn }

// =============================================================================
// Bare shorthand: default pool + wrap in one step
// =============================================================================

// Async0 wraps fn on a new default pool. The returned Decorator owns that
// pool; Close it when the function is no longer needed.
func Async0[R any](fn func(context.Context) (R, error)) (*Func0[R], *Decorator) {
	d := newDefaultDecorator()
	return Wrap0(d, fn), d
}

// Async1 is Async0 for one-argument functions.
func Async1[A, R any](fn func(context.Context, A) (R, error)) (*Func1[A, R], *Decorator) {
	d := newDefaultDecorator()
	return Wrap1(d, fn), d
}

// Async2 is Async0 for two-argument functions.
func Async2[A, B, R any](fn func(context.Context, A, B) (R, error)) (*Func2[A, B, R], *Decorator) {
	d := newDefaultDecorator()
	return Wrap2(d, fn), d
}

// Async3 is Async0 for three-argument functions.
func Async3[A, B, C, R any](fn func(context.Context, A, B, C) (R, error)) (*Func3[A, B, C, R], *Decorator) {
	d := newDefaultDecorator()
	return Wrap3(d, fn), d
}

// AsyncVariadic is Async0 for variadic functions.
func AsyncVariadic[A, R any](fn func(context.Context, ...A) (R, error)) (*FuncVariadic[A, R], *Decorator) {
	d := newDefaultDecorator()
	return WrapVariadic(d, fn), d
}
