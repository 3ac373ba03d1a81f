package workers

import (
	"runtime"
	"testing"
)

func TestCount(t *testing.T) {
	availableCPU := runtime.GOMAXPROCS(0)

	tests := []struct {
		name       string
		multiplier float64
		limit      int
		minExpect  int
		maxExpect  int
	}{
		{
			name:       "one per CPU",
			multiplier: 1.0,
			limit:      0,
			minExpect:  availableCPU,
			maxExpect:  availableCPU,
		},
		{
			name:       "two per CPU",
			multiplier: 2.0,
			limit:      0,
			minExpect:  availableCPU * 2,
			maxExpect:  availableCPU * 2,
		},
		{
			name:       "limit lower than calculated",
			multiplier: 2.0,
			limit:      1,
			minExpect:  1,
			maxExpect:  1,
		},
		{
			name:       "very low multiplier",
			multiplier: 0.01,
			limit:      0,
			minExpect:  1,
			maxExpect:  max(1, int(float64(availableCPU)*0.01)),
		},
		{"zero multiplier", 0.0, 0, 1, 1},
		{"negative multiplier", -1.0, 0, 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Count(tt.multiplier, tt.limit)

			if got < tt.minExpect {
				t.Errorf("Count(%v, %d) = %d, expected >= %d", tt.multiplier, tt.limit, got, tt.minExpect)
			}
			if got > tt.maxExpect {
				t.Errorf("Count(%v, %d) = %d, expected <= %d", tt.multiplier, tt.limit, got, tt.maxExpect)
			}
		})
	}
}

func TestForCPU(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	if got := ForCPU(0); got != cpus {
		t.Errorf("ForCPU(0) = %d, want %d", got, cpus)
	}
	if got := ForCPU(1); got != 1 {
		t.Errorf("ForCPU(1) = %d, want 1", got)
	}
}

func TestParseLimit(t *testing.T) {
	cpus := runtime.GOMAXPROCS(0)

	tests := []struct {
		name    string
		value   string
		limit   int
		want    int
		wantErr bool
	}{
		{name: "empty is unlimited", value: "", want: 0},
		{name: "zero is unlimited", value: "0", want: 0},
		{name: "whitespace", value: "  3 ", want: 3},
		{name: "explicit", value: "4", want: 4},
		{name: "explicit above limit", value: "20", limit: 10, want: 10},
		{name: "explicit below limit", value: "5", limit: 10, want: 5},
		{name: "auto", value: "auto", want: cpus},
		{name: "auto uppercase", value: "AUTO", want: cpus},
		{name: "auto with limit", value: "auto", limit: 1, want: 1},
		{name: "negative", value: "-2", wantErr: true},
		{name: "non-numeric", value: "many", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLimit(tt.value, tt.limit)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLimit(%q) error = %v, wantErr %v", tt.value, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLimit(%q, %d) = %d, want %d", tt.value, tt.limit, got, tt.want)
			}
		})
	}
}

func BenchmarkForCPU(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_ = ForCPU(0)
	}
}
