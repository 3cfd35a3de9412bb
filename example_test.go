package awaitable_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	awaitable "github.com/Swind/go-awaitable"
)

// ExampleAsync2 demonstrates the shorthand form with a single import.
func ExampleAsync2() {
	add, d := awaitable.Async2(func(ctx context.Context, a, b int) (int, error) {
		return a + b, nil
	})
	defer d.Close()

	ctx := context.Background()
	sum, err := add.Call(ctx, 2, 3).Get(ctx)
	fmt.Println(sum, err)

	// Output:
	// 5 <nil>
}

// ExampleFromPool demonstrates two functions sharing one pool.
func ExampleFromPool() {
	pool, err := awaitable.NewGoroutineThreadPool("shared", 2)
	if err != nil {
		panic(err)
	}
	pool.Start(context.Background())
	defer pool.Stop()

	d := awaitable.MustNew(awaitable.FromPool(pool))
	upper := awaitable.Wrap1(d, func(ctx context.Context, s string) (string, error) {
		return strings.ToUpper(s), nil
	})
	length := awaitable.Wrap1(d, func(ctx context.Context, s string) (int, error) {
		return len(s), nil
	})

	ctx := context.Background()
	u := upper.Call(ctx, "gopher")
	n := length.Call(ctx, "gopher")
	if err := awaitable.WaitAll(ctx, u, n); err != nil {
		panic(err)
	}

	uv, _ := u.Get(ctx)
	nv, _ := n.Get(ctx)
	fmt.Println(uv, nv)
	fmt.Println(upper.Pool() == length.Pool())

	// Output:
	// GOPHER 6
	// true
}

// ExampleAsCompleted demonstrates consuming results in completion order.
func ExampleAsCompleted() {
	d := awaitable.MustNew(awaitable.FromConfig(awaitable.PoolConfig{Workers: 3}))
	defer d.Close()

	sleep := awaitable.Wrap1(d, func(ctx context.Context, ms int) (int, error) {
		time.Sleep(time.Duration(ms) * time.Millisecond)
		return ms, nil
	})

	ctx := context.Background()
	futures := []awaitable.Pending{
		sleep.Call(ctx, 60),
		sleep.Call(ctx, 1),
		sleep.Call(ctx, 30),
	}
	for f := range awaitable.AsCompleted(ctx, futures...) {
		v, _ := f.(*awaitable.Future[int]).Get(ctx)
		fmt.Println(v)
	}

	// Output:
	// 1
	// 30
	// 60
}
