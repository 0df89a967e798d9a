//go:build !libmpv

package audio

import (
	"errors"
	"log/slog"

	"github.com/lisuiheng/fastplayer/playback"
)

// MPVAvailable 当前构建是否包含 libmpv 后端
const MPVAvailable = false

func newMPVEngine(*slog.Logger) (playback.Engine, error) {
	return nil, errors.New("libmpv backend is not enabled; build with -tags libmpv")
}
