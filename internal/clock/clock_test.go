// SPDX-License-Identifier: MPL-2.0

package clock

import (
	"slices"
	"testing"
	"time"
)

func TestFake_AdvanceFiresWaiters(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	start := c.Now()
	ch := c.After(time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before time advanced")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case <-ch:
		t.Fatal("After fired early")
	default:
	}

	c.Advance(500 * time.Millisecond)
	select {
	case got := <-ch:
		if want := start.Add(time.Second); !got.Equal(want) {
			t.Errorf("After delivered %v, want %v", got, want)
		}
	default:
		t.Fatal("After did not fire")
	}
}

func TestFake_ZeroDurationFiresImmediately(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire")
	}
}

func TestFake_SetFiresWaiters(t *testing.T) {
	t.Parallel()

	c := NewFake(time.Time{})
	ch := c.After(time.Hour)
	c.Set(c.Now().Add(2 * time.Hour))
	select {
	case <-ch:
	default:
		t.Fatal("Set did not fire the waiter")
	}
}

func TestAutoFake(t *testing.T) {
	t.Parallel()

	c := NewAutoFake(time.Time{})
	start := c.Now()
	<-c.After(100 * time.Millisecond)
	<-c.After(200 * time.Millisecond)

	if got := c.Now().Sub(start); got != 300*time.Millisecond {
		t.Errorf("elapsed = %v, want 300ms", got)
	}
	if got := c.Slept(); !slices.Equal(got, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}) {
		t.Errorf("Slept() = %v", got)
	}
}

func TestReal(t *testing.T) {
	t.Parallel()

	var c Clock = Real{}
	before := time.Now()
	<-c.After(time.Millisecond)
	if c.Now().Before(before) {
		t.Error("Real clock went backwards")
	}
}
