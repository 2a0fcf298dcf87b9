package civ

import "sort"

// DefaultModel is used when no radio model is configured.
const DefaultModel = "IC-7300"

// Factory default CI-V addresses of the supported transceivers.
var modelAddresses = map[string]byte{
	"IC-705":  0xa4,
	"IC-7300": 0x94,
	"IC-7600": 0x7a,
	"IC-7610": 0x98,
	"IC-7700": 0x74,
	"IC-7800": 0x6a,
	"IC-7850": 0x8e,
	"IC-7851": 0x8e,
	"IC-9700": 0xa2,
}

// AddressForModel returns the default CI-V address of a radio model.
func AddressForModel(model string) (byte, bool) {
	a, ok := modelAddresses[model]
	return a, ok
}

// Models lists the supported models, sorted.
func Models() []string {
	models := make([]string, 0, len(modelAddresses))
	for m := range modelAddresses {
		models = append(models, m)
	}
	sort.Strings(models)
	return models
}
