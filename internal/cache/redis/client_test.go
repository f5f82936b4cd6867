package redis

import "testing"

func TestKey(t *testing.T) {
	tests := []struct {
		prefix string
		parts  []string
		want   string
	}{
		{"auctiondb:", []string{"lock", "dynamic-us_commodities.gz"}, "auctiondb:lock:dynamic-us_commodities.gz"},
		{"", []string{"cycles"}, "cycles"},
		{"x:", []string{"values", "f", "g"}, "x:values:f:g"},
	}
	for _, tt := range tests {
		c := &Client{prefix: tt.prefix}
		if got := c.key(tt.parts...); got != tt.want {
			t.Errorf("key(%q, %v) = %q, want %q", tt.prefix, tt.parts, got, tt.want)
		}
	}
}
