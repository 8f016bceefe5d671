package buffer

import (
	"reflect"
	"sync"
	"testing"
)

func TestRingRecent(t *testing.T) {
	r := New[int](3)
	if r.Len() != 0 || len(r.Recent(0)) != 0 {
		t.Fatal("new ring should be empty")
	}

	r.Push(1)
	r.Push(2)
	if got := r.Recent(0); !reflect.DeepEqual(got, []int{2, 1}) {
		t.Fatalf("Recent = %v", got)
	}

	r.Push(3)
	r.Push(4)
	if r.Len() != 3 {
		t.Fatalf("Len = %d, want 3", r.Len())
	}
	if got := r.Recent(0); !reflect.DeepEqual(got, []int{4, 3, 2}) {
		t.Fatalf("Recent = %v", got)
	}
	if got := r.Recent(2); !reflect.DeepEqual(got, []int{4, 3}) {
		t.Fatalf("Recent(2) = %v", got)
	}
	if got := r.Recent(10); len(got) != 3 {
		t.Fatalf("Recent(10) = %v", got)
	}
}

func TestRingMinimumCapacity(t *testing.T) {
	r := New[string](0)
	r.Push("a")
	r.Push("b")
	if got := r.Recent(0); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("Recent = %v", got)
	}
}

func TestRingConcurrentPush(t *testing.T) {
	r := New[int](50)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				r.Push(base*100 + j)
			}
		}(i)
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Fatalf("Len = %d, want 50", r.Len())
	}
}
