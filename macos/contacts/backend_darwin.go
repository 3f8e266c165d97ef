//go:build darwin

package contacts

import "github.com/spachava753/stayconnected/internal/osascript"

var defaultRunner osascript.Runner = osascript.Run
