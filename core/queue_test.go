package core

import (
	"context"
	"fmt"
	"testing"
)

func namedItem(name string) TaskItem {
	return TaskItem{ID: nextTaskID(), Name: name, Task: func(ctx context.Context) {}}
}

// TestFIFOTaskQueue_FIFO verifies first-in-first-out behavior
// Given: A FIFO queue with 3 named items
// When: Items are popped from the queue
// Then: Items come out in insertion order
func TestFIFOTaskQueue_FIFO(t *testing.T) {
	// Arrange
	q := NewFIFOTaskQueue()

	// Act
	q.Push(namedItem("first"))
	q.Push(namedItem("second"))
	q.Push(namedItem("third"))

	// Assert
	for i, want := range []string{"first", "second", "third"} {
		item, ok := q.Pop()
		if !ok {
			t.Fatalf("Step %d: queue is empty, want %s", i, want)
		}
		if item.Name != want {
			t.Errorf("Step %d: name = %s, want %s", i, item.Name, want)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue = true, want false")
	}
}

// TestFIFOTaskQueue_WrapAround verifies order survives the ring wrapping
// Given: A queue that has been partly consumed
// When: More items are pushed than fit before the end of the buffer
// Then: Items still come out in insertion order, including across a resize
func TestFIFOTaskQueue_WrapAround(t *testing.T) {
	q := NewFIFOTaskQueue()
	next := 0
	want := 0
	for range 10 {
		q.Push(namedItem(fmt.Sprint(next)))
		next++
	}
	for range 8 {
		item, _ := q.Pop()
		if item.Name != fmt.Sprint(want) {
			t.Fatalf("Pop().Name = %s, want %d", item.Name, want)
		}
		want++
	}

	// 2 left; 30 more forces both a wrap and a grow
	for range 30 {
		q.Push(namedItem(fmt.Sprint(next)))
		next++
	}
	for want < next {
		item, ok := q.Pop()
		if !ok {
			t.Fatalf("queue empty at %d, want %d items", want, next)
		}
		if item.Name != fmt.Sprint(want) {
			t.Fatalf("Pop().Name = %s, want %d", item.Name, want)
		}
		want++
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() on empty queue = true, want false")
	}
}

// TestFIFOTaskQueue_Drain verifies every queued item is handed back
// Given: A FIFO queue with 3 items
// When: Drain is called
// Then: All 3 come back in order and the queue is empty
func TestFIFOTaskQueue_Drain(t *testing.T) {
	q := NewFIFOTaskQueue()
	q.Push(namedItem("x"))
	q.Push(namedItem("y"))
	q.Push(namedItem("z"))

	items := q.Drain()

	if len(items) != 3 {
		t.Fatalf("len(Drain()) = %d, want 3", len(items))
	}
	if items[0].Name != "x" || items[1].Name != "y" || items[2].Name != "z" {
		t.Errorf("Drain() order = %s,%s,%s, want x,y,z", items[0].Name, items[1].Name, items[2].Name)
	}
	if _, ok := q.Pop(); ok {
		t.Error("Pop() after Drain = true, want false")
	}

	// The drained slice must not alias the queue's storage
	q.Push(namedItem("w"))
	if items[0].Name != "x" {
		t.Errorf("items[0] = %s after Push, want x", items[0].Name)
	}
}

// TestFIFOTaskQueue_ShrinksAfterBurst verifies the buffer is given back
// Given: A FIFO queue that held 100 items
// When: All of them are popped
// Then: The buffer shrinks below compactMinCap and the queue remains functional
func TestFIFOTaskQueue_ShrinksAfterBurst(t *testing.T) {
	// Arrange
	q := NewFIFOTaskQueue()
	for range 100 {
		q.Push(namedItem("filler"))
	}
	if n := len(q.buf); n < 100 {
		t.Fatalf("len(q.buf) = %d after 100 pushes, want >= 100", n)
	}

	// Act
	for range 100 {
		q.Pop()
	}
	q.Push(namedItem("after"))

	// Assert
	if n := len(q.buf); n >= compactMinCap {
		t.Errorf("len(q.buf) = %d, want < %d", n, compactMinCap)
	}
	item, ok := q.Pop()
	if !ok {
		t.Fatal("Pop() after shrink = false, want true")
	}
	if item.Name != "after" {
		t.Errorf("Pop().Name = %s, want after", item.Name)
	}
}
