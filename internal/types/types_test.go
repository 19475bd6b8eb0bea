package wztypes_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wztypes "github.com/ossyrian/wzdecode/internal/types"
	"github.com/ossyrian/wzdecode/internal/wz"
)

func TestPixelDataSize(t *testing.T) {
	tests := []struct {
		name    string
		format  int32
		format2 byte
		w, h    int32
		want    int32
		wantErr bool
	}{
		{name: "bgra4444", format: 1, format2: 0, w: 10, h: 4, want: 80},
		{name: "bgra8888", format: 0, format2: 2, w: 10, h: 4, want: 160},
		{name: "rgb565", format: 513, format2: 0, w: 10, h: 4, want: 80},
		{name: "rgb565 via format2", format: 512, format2: 1, w: 10, h: 4, want: 80},
		{name: "rgb565 block", format: 517, format2: 0, w: 32, h: 32, want: 8},
		{name: "dxt3 unsupported", format: 3, format2: 0, w: 4, h: 4, want: 0},
		{name: "dxt5 unsupported", format: 2050, format2: 0, w: 4, h: 4, want: 0},
		{name: "largest bgra8888", format: 2, format2: 0, w: 23170, h: 23170, want: 2147395600},
		{name: "bgra4444 past int32", format: 1, format2: 0, w: 46341, h: 46341, wantErr: true},
		{name: "bgra8888 past int32", format: 2, format2: 0, w: 32768, h: 16384, wantErr: true},
		{name: "rgb565 block at max dimensions", format: 517, format2: 0, w: math.MaxInt32, h: 128, want: math.MaxInt32},
		{name: "negative width", format: 1, format2: 0, w: -2, h: 4, wantErr: true},
		{name: "negative height of unsupported format", format: 3, format2: 0, w: 2, h: -4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := wztypes.Canvas{Width: tt.w, Height: tt.h, Format: tt.format, Format2: tt.format2}
			got, err := wztypes.PixelDataSize(cv.Width, cv.Height, cv.PixelFormat())
			if tt.wantErr {
				assert.ErrorIs(t, err, wz.ErrMalformedProperty)
				assert.Zero(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPropertyType_IsContainer(t *testing.T) {
	assert.True(t, wztypes.PropertySub.IsContainer())
	assert.True(t, wztypes.PropertyImage.IsContainer())
	assert.False(t, wztypes.PropertyUOL.IsContainer())
	assert.Equal(t, "Canvas", wztypes.PropertyCanvas.String())
	assert.Equal(t, "Unknown", wztypes.PropertyType(99).String())
}
