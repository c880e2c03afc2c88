package app

import (
	"github.com/elbkind/feature-hub/internal/featureapp"
	"github.com/elbkind/feature-hub/modules/banner"
	"github.com/elbkind/feature-hub/modules/remotedata"
)

// coreModules is the definitive list of all feature app modules that are
// compiled into the featurehub binary.
var coreModules = []featureapp.Module{
	&banner.Module{},
	&remotedata.Module{},
}
