package socialink

import (
	"github.com/goliatone/go-socialink/core"
	"github.com/goliatone/go-socialink/providers/ayrshare"
)

func AyrshareGateway(cfg ayrshare.Config) (core.ProviderGateway, error) {
	return ayrshare.New(cfg)
}
