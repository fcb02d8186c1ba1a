package currencies

import (
	_ "embed"
	"strings"
)

type Type string

const (
	Fiat    Type = "FIAT"
	Crypto  Type = "CRYPTO"
	Unknown Type = "UNKNOWN"
)

//go:embed fiat.txt
var fiatList string

//go:embed crypto.txt
var cryptoList string

// Classifier answers whether a code is a fiat currency or a crypto ticker.
// The lists are disjoint, newline-delimited upper-case codes baked into the
// binary at build time.
type Classifier struct {
	fiat   map[string]struct{}
	crypto map[string]struct{}
}

func NewClassifier() *Classifier {
	return &Classifier{
		fiat:   loadList(fiatList),
		crypto: loadList(cryptoList),
	}
}

func loadList(raw string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, line := range strings.Split(raw, "\n") {
		code := strings.ToUpper(strings.TrimSpace(line))
		if code != "" {
			set[code] = struct{}{}
		}
	}
	return set
}

func (c *Classifier) Classify(iso string) Type {
	code := strings.ToUpper(strings.TrimSpace(iso))

	if _, ok := c.fiat[code]; ok {
		return Fiat
	}
	if _, ok := c.crypto[code]; ok {
		return Crypto
	}
	return Unknown
}

func (c *Classifier) IsCrypto(iso string) bool {
	return c.Classify(iso) == Crypto
}
