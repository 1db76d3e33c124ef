package installer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareVersions(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.2.0", -1},
		{"v2.0.0", "1.9.9", 1},
		{"1.22", "1.22.0", 0},
		{"1.0.0-rc1", "1.0.0", -1},
		{"2.2.5.1", "2.2.5", 1},
		{"2.2.5.1", "2.2.10", -1},
		{"1.21rc2", "1.21.0", -1},
		{"1.21rc2", "1.21rc10", -1},
		{"1.21beta1", "1.21rc1", -1},
		{"1.23rc1", "1.22.1", 1},
		{"20.11.0", "20.9.0", 1},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_vs_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, CompareVersions(tt.a, tt.b))
			assert.Equal(t, -tt.want, CompareVersions(tt.b, tt.a))
		})
	}
}

func TestNormalizeVersion(t *testing.T) {
	assert.Equal(t, "1.2.3", NormalizeVersion(" v1.2.3 "))
	assert.Equal(t, "version", NormalizeVersion("version"))
	assert.Equal(t, "^1.22", NormalizeVersion("^1.22"))
}

func TestSatisfies(t *testing.T) {
	assert.True(t, Satisfies("20.11.0", "20.11.0"))
	assert.True(t, Satisfies("20.11.0", "20.x"))
	assert.True(t, Satisfies("1.22.3", "^1.22"))
	assert.False(t, Satisfies("1.21.9", "^1.22"))
	assert.False(t, Satisfies("20.11.0", "20.11.1"))
	assert.False(t, Satisfies("", "20.x"))
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("nodejs", "v20.11.0", false, false, false)
	require.NoError(t, err)
	assert.Equal(t, ModePinned, req.Mode)
	assert.Equal(t, "20.11.0", req.Version)

	req, err = NewRequest("nodejs", "", true, true, true)
	require.NoError(t, err)
	assert.Equal(t, ModeUpdate, req.Mode)
	assert.True(t, req.Newest)
	assert.True(t, req.Force)

	req, err = NewRequest("go", "", false, false, false)
	require.NoError(t, err)
	assert.Equal(t, ModeLatest, req.Mode)

	_, err = NewRequest("go", "1.22.1", false, true, false)
	assert.Error(t, err)

	_, err = NewRequest("", "", false, false, false)
	assert.Error(t, err)
}
