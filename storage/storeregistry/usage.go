package storeregistry

// Usage restricts which programs accept a given backend.
//
// Backends are linked at build time: a backend registers itself via init()
// and a binary enables it by importing the package, usually as a blank import.
type Usage uint8

const (
	// UsageCLI marks backends available to bf-issuer.
	UsageCLI Usage = 1 << iota
	// UsageDaemon marks backends bf-ledgerd can serve.
	UsageDaemon
)

func (u Usage) allows(want Usage) bool { return u&want != 0 }
