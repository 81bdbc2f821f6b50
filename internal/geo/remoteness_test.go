package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteness(t *testing.T) {
	tests := []struct {
		name     string
		urbanKM  float64
		reachKM  float64
		expected string
	}{
		{"urban: close to center", 2, 15, RemotenessUrban},
		{"urban: at core radius", 8, 15, RemotenessUrban},
		{"peri_urban: just past core", 8.01, 15, RemotenessPeriUrban},
		{"peri_urban: at reach", 15, 15, RemotenessPeriUrban},
		{"remote: past reach", 20, 15, RemotenessRemote},
		{"remote: reach inside core", 9, 5, RemotenessRemote},
		{"urban: zero distance", 0, 0, RemotenessUrban},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Remoteness(tt.urbanKM, tt.reachKM))
		})
	}
}
