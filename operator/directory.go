// Package operator maintains an in-memory directory of mobile network operators
// built from the gateway's active configuration endpoint.
package operator

import (
	"context"
	"errors"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"

	"github.com/myzuwa/pawapay-go/libs/clients/pawapay"
	errorutils "github.com/myzuwa/pawapay-go/libs/errors"
	"github.com/myzuwa/pawapay-go/libs/logging"
)

const directoryKey = "operators"

// DefaultTTL is how long a refreshed directory stays fresh
const DefaultTTL = time.Hour

// ErrDirectoryFetch indicates the upstream configuration call failed or
// returned a response missing the expected country collection
var ErrDirectoryFetch = errors.New("operator: directory fetch failed")

// Limits are the transaction bounds for one currency on one operator
type Limits struct {
	MinAmount decimal.Decimal
	MaxAmount decimal.Decimal
}

// Info is the directory's view of a single operator
type Info struct {
	Code        string
	DisplayName string
	Country     string
	Status      string
	// Limits keyed by currency code
	Limits map[string]Limits
}

// Available is true when the operator is accepting the configured operation type
func (i Info) Available() bool {
	return i.Status == "OPERATIONAL" || i.Status == "AVAILABLE"
}

// SupportedCurrencies lists the currencies the operator has limits for
func (i Info) SupportedCurrencies() []string {
	currencies := make([]string, 0, len(i.Limits))
	for currency := range i.Limits {
		currencies = append(currencies, currency)
	}
	return currencies
}

// Directory is a TTL cached map of operator code to Info, refreshed lazily
// from the gateway. Refreshes are serialized, queries never return partial state.
type Directory struct {
	client        pawapay.Client
	country       string
	operationType string
	ttl           time.Duration

	mu    sync.Mutex
	cache *cache.Cache
}

// NewDirectory creates a Directory for the given country scoped to one operation type
func NewDirectory(client pawapay.Client, country, operationType string, ttl time.Duration) *Directory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Directory{
		client:        client,
		country:       country,
		operationType: operationType,
		ttl:           ttl,
		cache:         cache.New(ttl, 2*ttl),
	}
}

// Refresh rebuilds the directory from the gateway's active configuration.
// A response without the country collection is a hard error and leaves
// any previously cached directory untouched.
func (d *Directory) Refresh(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refreshLocked(ctx)
}

func (d *Directory) refreshLocked(ctx context.Context) error {
	conf, err := d.client.GetActiveConfiguration(ctx, d.country, d.operationType)
	if err != nil {
		return errorutils.Wrap(ErrDirectoryFetch, err.Error())
	}
	if conf == nil || conf.Countries == nil {
		return errorutils.Wrap(ErrDirectoryFetch, "active configuration response is missing countries")
	}

	operators := map[string]Info{}
	for _, country := range conf.Countries {
		if country.Country != d.country {
			continue
		}
		for _, provider := range country.Providers {
			info := Info{
				Code:        provider.Provider,
				DisplayName: provider.DisplayName,
				Country:     country.Country,
				Limits:      map[string]Limits{},
			}
			for _, currency := range provider.Currencies {
				op, ok := currency.OperationTypes[d.operationType]
				if !ok {
					continue
				}
				info.Status = op.Status
				minAmount, err := decimal.NewFromString(op.MinAmount)
				if err != nil {
					continue
				}
				maxAmount, err := decimal.NewFromString(op.MaxAmount)
				if err != nil {
					continue
				}
				info.Limits[currency.Currency] = Limits{MinAmount: minAmount, MaxAmount: maxAmount}
			}
			operators[provider.Provider] = info
		}
	}

	d.cache.Set(directoryKey, operators, d.ttl)
	return nil
}

// operators returns the cached directory, refreshing at most once when stale
func (d *Directory) operators(ctx context.Context) (map[string]Info, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cached, ok := d.cache.Get(directoryKey); ok {
		return cached.(map[string]Info), nil
	}

	if err := d.refreshLocked(ctx); err != nil {
		return nil, err
	}
	cached, _ := d.cache.Get(directoryKey)
	return cached.(map[string]Info), nil
}

// Lookup returns the directory entry for an operator code.
// An unknown code is not an error, the second return is false.
func (d *Directory) Lookup(ctx context.Context, code string) (Info, bool, error) {
	operators, err := d.operators(ctx)
	if err != nil {
		return Info{}, false, err
	}
	info, ok := operators[code]
	return info, ok, nil
}

// IsAvailable reports whether the operator is known and currently accepting transactions
func (d *Directory) IsAvailable(ctx context.Context, code string) bool {
	info, ok, err := d.Lookup(ctx, code)
	if err != nil {
		logging.Logger(ctx, "operator.IsAvailable").Error().Err(err).Msg("directory lookup failed")
		return false
	}
	return ok && info.Available()
}

// SupportedCurrencies returns the operator's supported currencies, empty when unknown
func (d *Directory) SupportedCurrencies(ctx context.Context, code string) []string {
	info, ok, err := d.Lookup(ctx, code)
	if err != nil || !ok {
		return nil
	}
	return info.SupportedCurrencies()
}

// LimitsFor returns the transaction bounds for an operator and currency.
// The second return is false when the directory has no specific entry.
func (d *Directory) LimitsFor(ctx context.Context, code, currency string) (Limits, bool) {
	info, ok, err := d.Lookup(ctx, code)
	if err != nil || !ok {
		return Limits{}, false
	}
	limits, ok := info.Limits[currency]
	return limits, ok
}
