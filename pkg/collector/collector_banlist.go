package collector

import (
	"context"
	"net"

	"github.com/go-logr/logr"

	"github.com/cirocosta/bitcoind-exporter/pkg/bitcoind"
)

const unknownCountry = "unknown"

// BanListCollector publishes when each ban was created and when it expires,
// labeled by the banned address.
//
// Unless pruning is enabled, series for addresses that got unbanned are
// left behind with their last values: the registry has no way of knowing
// that an address is gone other than us resetting the whole vector.
//
type BanListCollector struct {
	client        bitcoind.StatusClient
	metrics       *Metrics
	countryMapper CountryMapper
	prune         bool
	log           logr.Logger

	bans []bitcoind.BanEntry
}

var _ Stage = (*BanListCollector)(nil)

func NewBanListCollector(
	client bitcoind.StatusClient,
	metrics *Metrics,
	log logr.Logger,
	countryMapper CountryMapper,
	prune bool,
) *BanListCollector {
	return &BanListCollector{
		client:        client,
		metrics:       metrics,
		countryMapper: countryMapper,
		prune:         prune,
		log:           log,
	}
}

func (c *BanListCollector) Name() string {
	return "banlist"
}

func (c *BanListCollector) Collect(ctx context.Context) error {
	res, err := c.client.ListBanned(ctx)
	if err != nil {
		return err
	}

	c.bans = res

	c.collectBans()
	c.collectBannedPerCountry()

	return nil
}

func (c *BanListCollector) collectBans() {
	if c.prune {
		c.metrics.BanCreated.Reset()
		c.metrics.BannedUntil.Reset()
	}

	for _, ban := range c.bans {
		c.metrics.BanCreated.
			WithLabelValues(ban.Address, BanReason).
			Set(float64(ban.BanCreated))

		c.metrics.BannedUntil.
			WithLabelValues(ban.Address, BanReason).
			Set(float64(ban.BannedUntil))
	}
}

// collectBannedPerCountry rebuilds the per-country count from scratch as,
// differently from the per-address series, it's an aggregate of the current
// ban list.
//
func (c *BanListCollector) collectBannedPerCountry() {
	counters := map[string]float64{}

	for _, ban := range c.bans {
		counters[c.country(ban.Address)]++
	}

	c.metrics.BannedPeers.Reset()
	for country, count := range counters {
		c.metrics.BannedPeers.WithLabelValues(country).Set(count)
	}
}

// country resolves the country of a ban entry, which bitcoind reports either
// as a subnet (`1.2.3.0/24`) or a plain address.
//
func (c *BanListCollector) country(address string) string {
	ip, _, err := net.ParseCIDR(address)
	if err != nil {
		ip = net.ParseIP(address)
	}

	if ip == nil {
		return unknownCountry
	}

	country, err := c.countryMapper(ip)
	if err != nil {
		c.log.V(1).Info("country lookup failed",
			"address", address, "err", err.Error())
		return unknownCountry
	}

	if country == "" {
		return unknownCountry
	}

	return country
}
