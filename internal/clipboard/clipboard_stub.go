//go:build !(linux || freebsd || openbsd || netbsd || dragonfly || darwin || windows) || (darwin && !cgo)

package clipboard

func open() (backend, error) {
	return nil, ErrUnsupported
}
