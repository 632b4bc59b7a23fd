package rounds

import "github.com/dikanevn/bf/merkle"

var builtin = []string{
	"15b2605fe2558020e16de98d1dd44bcd0e09a2c4a0c5c3b43c7bc8826fe1de5c",
	"fbdd5b587f8d4ddd5ee81305fa86c5dffc6ef5ddd1f884aae9c47aa23c264ad0",
	"10fdc3d59f28d4134c5e005754108818992e87ba7c75424ff14162d86f1f8fc6",
	"c493529510496f913a286b23fffbda49e7ce25209240aa2e885e6bd65afce2d1",
	"afa6be4fce83c1d4b210682d0b429ca7affb12ba2be432e89ebdaf6053368651",
	"4728ecdfac15efddb6a73e8bf4f92e3b4a63f969149ad70b1beeba374fd9a61d",
	"d4e32d4c0460413e953db0685fefbab9dfe628c432266a7219b1746c34f406c1",
	"dd1f724efa38061596cc6c48d777b5333a56ea54e588cfd2930e5c50d3c17dc0",
	"1a80e50cbea55ba84043a6ef3727372fc05a0452b555387231827b2dc8cff067",
	"78958e4893765b52f9051448a331767acbee8e2f537e3e38e176db61f4dadebf",
	"538a69262f7b4d950cbb729dabc1bb9192af577e721bb36fb629678cf987d6e8",
	"a154ed05ae223ee0e550b752c3721962ea627ed46c29aa4ff69b5ccefac8b5b0",
	"4c69b41132b70c2de8ea67adbcdb7e565a09c6ca8f34003e7bd503e1f991633b",
	"b22841b3f51d8b7e0d8ffe9ebcf0976d834e2ffa7f2da1cbdfb76087e33b0468",
	"1360356e879a57033138bc0f6ffea2546fc7f0e30f19084c0d158ddfdb62da4d",
	"3a11b7820438c4f4112dc996155976c68514acb8ccadd2a4cfa6c15159795ebd",
	"71afbf02a6c877b530dc4e0ca7b6fe0382d989882cbbcb677c027e3afdb01487",
	"b46cb0b2f726e8d3f0cd58a5a20f26abbc2691ef4cf2976c588b7422fff4105f",
	"19b613552537bb059fc4975108a517d88c7862baf7c75c5bbf62581771dcca38",
	"1b492663b79644d8d56e7f793c3bfbd0d7cce6d706c8bc122af969405e5fc6ee",
	"9060f8cbf8cea8a48cb4697c62e8aa4f104c9a2269b46fc69b4974923cff1b13",
}

// Default returns the 21 commitments of the production deployment.
func Default() *Registry {
	roots := make([]merkle.Hash, len(builtin))
	for i, s := range builtin {
		roots[i] = merkle.MustParseHash(s)
	}
	return MustNew(roots...)
}
