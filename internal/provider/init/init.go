// Package init exists solely to trigger backend registration via import
// side-effects. Import this package once in your main or cmd layer:
//
//	import _ "github.com/anushkapunekar/agentops/internal/provider/init"
//
// This registers the hosted (OpenAI chat completions) and local (model
// runner process) backends with the global provider registry.
package init

import (
	_ "github.com/anushkapunekar/agentops/internal/provider/local"
	_ "github.com/anushkapunekar/agentops/internal/provider/openai"
)
