package plugin

import (
	"errors"
	"fmt"
)

// ErrTooManyPlugins is returned when more plugins are registered than allowed.
var ErrTooManyPlugins = errors.New("too many plugins")

// PluginError tags a plugin failure with the plugin and the stage it ran in.
type PluginError struct {
	Err      error
	PluginID string
	Stage    string
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q failed in %s stage: %v", e.PluginID, e.Stage, e.Err)
}

func (e *PluginError) Unwrap() error { return e.Err }
