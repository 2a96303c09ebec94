//go:build ((linux || freebsd || openbsd || netbsd || dragonfly || darwin) && cgo) || windows

package clipboard

import (
	"runtime"

	"golang.design/x/clipboard"
)

type systemBackend struct{}

func open() (backend, error) {
	if runtime.GOOS != "darwin" && runtime.GOOS != "windows" && !hasDisplay() {
		return nil, ErrNoDisplay
	}
	if err := clipboard.Init(); err != nil {
		return nil, err
	}
	return systemBackend{}, nil
}

func (systemBackend) write(f format, data []byte) error {
	clipboard.Write(systemFormat(f), data)
	return nil
}

func (systemBackend) read(f format) ([]byte, error) {
	return clipboard.Read(systemFormat(f)), nil
}

func systemFormat(f format) clipboard.Format {
	if f == formatPNG {
		return clipboard.FmtImage
	}
	return clipboard.FmtText
}
