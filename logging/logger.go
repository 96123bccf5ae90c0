package logging

import "go.uber.org/zap"

// New returns a named child of the global zap logger so components keep their own
// prefix while honoring whatever level config.New installed.
func New(component string) *zap.SugaredLogger {
	return zap.S().Named(component)
}
