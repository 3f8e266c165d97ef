//go:build darwin

package messages

import "github.com/spachava753/stayconnected/internal/osascript"

var defaultRunner osascript.Runner = osascript.Run
