package domain

// Provider identifies an external calendar provider.
type Provider string

const (
	ProviderGoogle  Provider = "google"
	ProviderOutlook Provider = "outlook"
)

// KnownProviders lists the providers this system integrates with.
// Adding a third provider means implementing provider.Client for it and
// registering it here.
var KnownProviders = []Provider{ProviderGoogle, ProviderOutlook}

// Valid reports whether p is one of the known providers.
func (p Provider) Valid() bool {
	for _, known := range KnownProviders {
		if p == known {
			return true
		}
	}
	return false
}

func (p Provider) String() string { return string(p) }
