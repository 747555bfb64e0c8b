package env

import "testing"

func TestGetFallsBackWhenUnset(t *testing.T) {
	t.Setenv("MEALSHARE_TEST_VALUE", "")
	if got := Get("MEALSHARE_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("MEALSHARE_TEST_VALUE", "  ")
	if got := Get("MEALSHARE_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	t.Setenv("MEALSHARE_TEST_VALUE", " console ")
	if got := Get("MEALSHARE_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected env value, got %q", got)
	}
}

func TestFirstHonoursKeyOrder(t *testing.T) {
	t.Setenv("MEALSHARE_TEST_A", "")
	t.Setenv("MEALSHARE_TEST_B", "pod-7")
	t.Setenv("MEALSHARE_TEST_C", "host-1")
	if got := First("x", "MEALSHARE_TEST_A", "MEALSHARE_TEST_B", "MEALSHARE_TEST_C"); got != "pod-7" {
		t.Fatalf("expected pod-7, got %q", got)
	}
	if got := First("x"); got != "x" {
		t.Fatalf("expected fallback with no keys, got %q", got)
	}
}
