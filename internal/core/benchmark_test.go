package core

import (
	"context"
	"fmt"
	"testing"
	"time"
)

// ============================================================================
// Header Normalization Benchmarks
// ============================================================================

// BenchmarkNormalizeHeader benchmarks camelCase key derivation.
// Called once per column per sheet thanks to the key cache in ProcessRows.
func BenchmarkNormalizeHeader(b *testing.B) {
	headers := []string{
		"Transaction ID", "Date", "Customer Name", "Amount",
		"first_name", "Last-Name", "  Total   Due.Amount  ", "ÉTAT civil",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, h := range headers {
			NormalizeHeader(h, true)
		}
	}
}

// BenchmarkNormalizeHeader_Passthrough benchmarks whitespace collapsing only.
func BenchmarkNormalizeHeader_Passthrough(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		NormalizeHeader("  Customer    Name  ", false)
	}
}

// ============================================================================
// Row Processing Benchmarks
// ============================================================================

func benchmarkRows(n, cols int) []*Row {
	when := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	rows := make([]*Row, n)
	for i := range rows {
		r := NewRow(cols)
		for c := 0; c < cols; c++ {
			key := fmt.Sprintf("Column %d Name", c)
			switch {
			case i%10 == 9:
				r.Set(key, Null()) // empty row
			case c%4 == 0:
				r.Set(key, NumberValue(float64(i*c)))
			case c%4 == 1:
				r.Set(key, DateValue(when))
			case c%4 == 2:
				r.Set(key, StringValue(""))
			default:
				r.Set(key, StringValue("value"))
			}
		}
		rows[i] = r
	}
	return rows
}

// BenchmarkProcessRows benchmarks the full row pipeline on a typical sheet.
func BenchmarkProcessRows(b *testing.B) {
	rows := benchmarkRows(1000, 12)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ProcessRows(rows, true, true)
	}
}

// BenchmarkProcessRows_Wide benchmarks a sheet with many columns.
func BenchmarkProcessRows_Wide(b *testing.B) {
	rows := benchmarkRows(200, 100)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ProcessRows(rows, false, true)
	}
}

// ============================================================================
// Sheet Selection Benchmarks
// ============================================================================

// BenchmarkSelectAndProcess_AllSheets benchmarks concurrent per-sheet processing.
func BenchmarkSelectAndProcess_AllSheets(b *testing.B) {
	src := &MemorySource{Sheets: make(map[string][]*Row)}
	for s := 0; s < 8; s++ {
		name := fmt.Sprintf("Sheet%d", s+1)
		src.Names = append(src.Names, name)
		src.Sheets[name] = benchmarkRows(500, 10)
	}
	opts := Options{AllSheets: true, AddID: true, CamelCase: true}
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := SelectAndProcess(ctx, src, opts); err != nil {
			b.Fatal(err)
		}
	}
}
