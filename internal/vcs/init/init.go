// Package init triggers VCS provider registration via import side-effects.
//
//	import _ "github.com/anushkapunekar/agentops/internal/vcs/init"
package init

import (
	_ "github.com/anushkapunekar/agentops/internal/vcs/gitlab"
)
