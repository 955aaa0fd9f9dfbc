package dispatcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseColorHex(t *testing.T) {
	c, ok := ParseColor([]byte("#aabbcc"))
	assert.True(t, ok)
	assert.Equal(t, RGB{0xaa, 0xbb, 0xcc}, c)

	c, ok = ParseColor([]byte("#AABBCC"))
	assert.True(t, ok)
	assert.Equal(t, RGB{0xaa, 0xbb, 0xcc}, c)
}

func TestParseColorX11(t *testing.T) {
	cases := []struct {
		spec string
		want RGB
	}{
		{"rgb:aa/bb/cc", RGB{0xaa, 0xbb, 0xcc}},
		{"rgb:0/0/0", RGB{0, 0, 0}},
		// Short components fill the most significant bits.
		{"rgb:a/b/c", RGB{0xa0, 0xb0, 0xc0}},
		// Long components keep only the top byte.
		{"rgb:aabb/ccdd/eeff", RGB{0xaa, 0xcc, 0xee}},
		{"rgb:FFF/000/FFF", RGB{0xff, 0x00, 0xff}},
	}
	for _, tc := range cases {
		c, ok := ParseColor([]byte(tc.spec))
		assert.True(t, ok, tc.spec)
		assert.Equal(t, tc.want, c, tc.spec)
	}
}

func TestParseColorRejects(t *testing.T) {
	bad := []string{
		"",
		"#12345",
		"#1234567",
		"#gghhii",
		"rgb:",
		"rgb:1/2",
		"rgb:1/2/3/4",
		"rgb:xx/00/00",
		"rgb:12345/0/0",
		"red",
	}
	for _, spec := range bad {
		_, ok := ParseColor([]byte(spec))
		assert.False(t, ok, "spec %q should be rejected", spec)
	}
}

func TestStandardPalette(t *testing.T) {
	p := standardPalette()
	assert.Equal(t, RGB{0, 0, 0}, p[0])
	assert.Equal(t, RGB{0xff, 0xff, 0xff}, p[15])
	// Cube corners.
	assert.Equal(t, RGB{0, 0, 0}, p[16])
	assert.Equal(t, RGB{0xff, 0xff, 0xff}, p[231])
	// Grayscale ramp endpoints.
	assert.Equal(t, RGB{8, 8, 8}, p[232])
	assert.Equal(t, RGB{238, 238, 238}, p[255])
}
