package catalog

import (
	"context"
	"fmt"
	"os"
)

// Source fetches the full set of component types.
type Source interface {
	Load(ctx context.Context) ([]ComponentType, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]ComponentType, error)

func (f SourceFunc) Load(ctx context.Context) ([]ComponentType, error) {
	return f(ctx)
}

// FileSource reads a YAML or JSON catalog document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) ([]ComponentType, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", s.Path, err)
	}
	return Parse(data)
}
