package catalog

import "github.com/tailored-agentic-units/agentics/core/stage"

var (
	ErrNotFound   = stage.NewError(stage.Schema, "type not found in catalog")
	ErrLoadFailed = stage.NewError(stage.Schema, "load failed")
	ErrSaveFailed = stage.NewError(stage.Schema, "save failed")
	ErrNoName     = stage.NewError(stage.Schema, "type definition has no name")
	ErrInvalidKey = stage.NewError(stage.Schema, "invalid catalog key")
)
