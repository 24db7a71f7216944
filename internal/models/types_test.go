package models

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadingValid(t *testing.T) {
	tests := []struct {
		name string
		t    float64
		h    float64
		want bool
	}{
		{"room conditions", 22.5, 50, true},
		{"cold boundary", -40, 0, true},
		{"hot boundary", 80, 100, true},
		{"below cold boundary", -40.1, 50, false},
		{"above hot boundary", 80.1, 50, false},
		{"humidity below zero", 22, -0.1, false},
		{"humidity above hundred", 22, 100.1, false},
		{"NaN temperature", math.NaN(), 50, false},
		{"NaN humidity", 22, math.NaN(), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReading(1000, tt.t, tt.h)
			assert.Equal(t, tt.want, r.Valid())
		})
	}
}

func TestReadingBucket(t *testing.T) {
	assert.Equal(t, int64(0), Reading{TS: 0}.Bucket(300))
	assert.Equal(t, int64(0), Reading{TS: 299}.Bucket(300))
	assert.Equal(t, int64(300), Reading{TS: 300}.Bucket(300))
	assert.Equal(t, int64(1699999800), Reading{TS: 1700000000}.Bucket(300))
}

func TestReadingDatetime(t *testing.T) {
	r := Reading{TS: 1700000000}
	assert.Equal(t, "2023-11-14 22:13:20", r.Datetime())
}
