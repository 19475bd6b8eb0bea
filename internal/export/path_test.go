package export

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutputPath(t *testing.T) {
	tests := []struct {
		nodePath string
		want     string
	}{
		{nodePath: "Mob.wz/100100.img/stand/0", want: filepath.Join("out", "Mob.wz", "100100.img", "stand", "0.png")},
		{nodePath: "stand//0", want: filepath.Join("out", "stand", "0.png")},
		{nodePath: "../../etc/passwd", want: filepath.Join("out", "_", "_", "etc", "passwd.png")},
		{nodePath: "./a", want: filepath.Join("out", "a.png")},
	}

	for _, tt := range tests {
		t.Run(tt.nodePath, func(t *testing.T) {
			assert.Equal(t, tt.want, outputPath("out", strings.Split(tt.nodePath, "/"), ".png"))
		})
	}
}
