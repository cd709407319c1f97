package expand

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandSimpleRange(t *testing.T) {
	targets, err := Expand("http://example.com/file_{1..3}.csv")
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "http://example.com/file_1.csv", targets[0].URL)
	assert.Equal(t, "http://example.com/file_2.csv", targets[1].URL)
	assert.Equal(t, "http://example.com/file_3.csv", targets[2].URL)
	assert.Equal(t, "file_1.csv", targets[0].Filename)
}

func TestExpandLeadingZeros(t *testing.T) {
	targets, err := Expand("https://data.org/img_{001..003}.png")
	require.NoError(t, err)
	require.Len(t, targets, 3)
	assert.Equal(t, "https://data.org/img_001.png", targets[0].URL)
	assert.Equal(t, "https://data.org/img_002.png", targets[1].URL)
	assert.Equal(t, "https://data.org/img_003.png", targets[2].URL)
}

func TestExpandWidthCrossover(t *testing.T) {
	// No leading zero means no padding even when widths differ.
	targets, err := Expand("http://e.com/part{8..12}.bin")
	require.NoError(t, err)
	require.Len(t, targets, 5)
	assert.Equal(t, "http://e.com/part8.bin", targets[0].URL)
	assert.Equal(t, "http://e.com/part10.bin", targets[2].URL)
	assert.Equal(t, "http://e.com/part12.bin", targets[4].URL)
}

func TestExpandSingleElementRange(t *testing.T) {
	targets, err := Expand("http://e.com/{7..7}.dat")
	require.NoError(t, err)
	require.Len(t, targets, 1)
	assert.Equal(t, "http://e.com/7.dat", targets[0].URL)
}

func TestExpandInvalidRange(t *testing.T) {
	_, err := Expand("http://x.com/{5..3}.bin")
	assert.True(t, errors.Is(err, ErrInvalidRange))
}

func TestExpandNoToken(t *testing.T) {
	for _, template := range []string{
		"http://x.com/file.csv",
		"http://x.com/{a..b}.csv",
		"http://x.com/{1..}.csv",
		"http://x.com/{..3}.csv",
	} {
		_, err := Expand(template)
		assert.True(t, errors.Is(err, ErrInvalidTemplate), "template %q", template)
	}
}

func TestExpandFirstTokenWins(t *testing.T) {
	targets, err := Expand("http://x.com/{1..2}/{3..4}.bin")
	require.NoError(t, err)
	require.Len(t, targets, 2)
	assert.Equal(t, "http://x.com/1/{3..4}.bin", targets[0].URL)
	assert.Equal(t, "http://x.com/2/{3..4}.bin", targets[1].URL)
}

func TestFilenameIgnoresQuery(t *testing.T) {
	targets, err := Expand("http://x.com/files/data_{1..1}.csv?token=abc")
	require.NoError(t, err)
	assert.Equal(t, "data_1.csv", targets[0].Filename)
}
