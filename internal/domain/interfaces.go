package domain

// QuoteProvider is the capability set every market data provider implements.
// Conformance is structural; an adapter that can build a quote and a spot FX
// rate can join the cascade, there is no registration step.
// This interface breaks the dependency between the provider cascade and the
// concrete API clients.
type QuoteProvider interface {
	// Name returns the short provider identifier used in logs and in
	// aggregated failure reports.
	Name() string

	// FetchQuote returns a snapshot for one symbol. Optional fields the
	// provider cannot supply are nil. A provider that cannot produce a
	// usable last price returns an *AdapterError instead of a quote.
	FetchQuote(symbol string) (*Quote, error)

	// FetchRate returns the spot conversion rate between two currencies
	FetchRate(from, to Currency) (*FxRate, error)
}

// RateResolver resolves spot conversion rates between currencies.
// Rate(x, x) is always 1 and must not touch the network.
// This interface breaks the import cycle between the evaluator and the fx
// package.
type RateResolver interface {
	Rate(from, to Currency) (float64, error)
}

// QuoteResolver resolves quotes through whatever provider chain is
// configured. Used by the evaluator so it does not depend on the cascade
// implementation.
type QuoteResolver interface {
	ResolveQuote(symbol string) (*Quote, error)
}
