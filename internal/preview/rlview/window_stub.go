//go:build !raylib

package rlview

import (
	"context"

	"github.com/coreman2200/spiraltree/internal/settings"
)

type Window struct {
	Scene  *Scene
	OnKey  func(settings.Event)
	Title  string
	Width  int
	Height int
}

func (w *Window) Run(ctx context.Context) error { return ErrUnavailable }
