package dashboard

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FormatNumber renders the absolute value of x with the given number of
// decimals and comma thousands separators: 1234567.891 -> "1,234,567.89".
func FormatNumber(x float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	fixed := decimal.NewFromFloat(x).Abs().StringFixed(int32(decimals))

	intPart, fracPart, _ := strings.Cut(fixed, ".")

	var b strings.Builder
	lead := len(intPart) % 3
	if lead == 0 {
		lead = 3
	}
	b.WriteString(intPart[:lead])
	for i := lead; i < len(intPart); i += 3 {
		b.WriteByte(',')
		b.WriteString(intPart[i : i+3])
	}
	if fracPart != "" {
		b.WriteByte('.')
		b.WriteString(fracPart)
	}
	return b.String()
}

// Refresh calls fn now and then every interval until ctx ends. A failing
// fn does not stop the loop; its error goes to onErr when set.
func Refresh(ctx context.Context, interval time.Duration, fn func(context.Context) error, onErr func(error)) {
	run := func() {
		if err := fn(ctx); err != nil && onErr != nil && ctx.Err() == nil {
			onErr(err)
		}
	}

	run()
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run()
		}
	}
}
