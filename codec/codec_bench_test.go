package codec

import (
	"testing"
)

type benchRecord struct {
	ID           string            `json:"id"`
	Algorithm    string            `json:"algorithm"`
	Samples      int               `json:"samples"`
	ChangePoints []int             `json:"change_points"`
	Labels       map[string]string `json:"labels"`
}

func newBenchRecord() benchRecord {
	cps := make([]int, 360)
	for i := range cps {
		cps[i] = (i + 1) * 1400
	}

	return benchRecord{
		ID:           "0d7c3b5e-6f2a-4f0e-9d0c-3a4c1f2e9b7a",
		Algorithm:    "Pelt",
		Samples:      600000,
		ChangePoints: cps,
		Labels:       map[string]string{"process": "PROCESS_23", "model": "l2"},
	}
}

func benchmarkCodecMarshal(b *testing.B, c Codec, v any) {
	b.Helper()
	b.ReportAllocs()

	warm, err := c.Marshal(v)
	if err != nil {
		b.Fatal(err)
	}
	b.SetBytes(int64(len(warm)))

	var sink []byte
	b.ResetTimer()
	for b.Loop() {
		out, err := c.Marshal(v)
		if err != nil {
			b.Fatal(err)
		}
		sink = out
	}
	_ = sink
}

func BenchmarkCodec_Marshal_Record(b *testing.B) {
	rec := newBenchRecord()

	b.Run("stdlib", func(b *testing.B) { benchmarkCodecMarshal(b, JSON{}, rec) })
	b.Run("go-json", func(b *testing.B) { benchmarkCodecMarshal(b, GoJSON{}, rec) })
}

func BenchmarkCodec_Unmarshal_Record(b *testing.B) {
	data := MustMarshal(JSON{}, newBenchRecord())

	for _, c := range []Codec{JSON{}, GoJSON{}} {
		b.Run(c.Name(), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(data)))

			for b.Loop() {
				var rec benchRecord
				if err := c.Unmarshal(data, &rec); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
