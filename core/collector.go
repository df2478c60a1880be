package core

import "github.com/prometheus/client_golang/prometheus"

// Collector exposes a client's counters and tier usage as prometheus
// metrics. Scrapes read only atomic counters; like the memory sampler,
// a scrape is advisory and needs no transactional snapshot.
type Collector struct {
	client *Client

	accesses      *prometheus.Desc
	releases      *prometheus.Desc
	fetches       *prometheus.Desc
	evictions     *prometheus.Desc
	demotions     *prometheus.Desc
	bytesMoved    *prometheus.Desc
	tierUsedBytes *prometheus.Desc
	chunkBytes    *prometheus.Desc
}

// NewCollector creates a prometheus collector over the client.
func NewCollector(c *Client) *Collector {
	return &Collector{
		client: c,
		accesses: prometheus.NewDesc("hetmem_param_accesses_total",
			"Parameter access calls.", nil, nil),
		releases: prometheus.NewDesc("hetmem_param_releases_total",
			"Parameter release calls.", nil, nil),
		fetches: prometheus.NewDesc("hetmem_remote_fetches_total",
			"Remote comm-group fetches that ran a collective.", nil, nil),
		evictions: prometheus.NewDesc("hetmem_evictions_total",
			"Eviction victims selected under tier pressure.", nil, nil),
		demotions: prometheus.NewDesc("hetmem_demotions_total",
			"Chunk payloads demoted from accelerator to host.", nil, nil),
		bytesMoved: prometheus.NewDesc("hetmem_payload_bytes_moved_total",
			"Payload bytes copied between tiers.", []string{"direction"}, nil),
		tierUsedBytes: prometheus.NewDesc("hetmem_tier_used_bytes",
			"Bytes currently in use on a tier.", []string{"tier"}, nil),
		chunkBytes: prometheus.NewDesc("hetmem_chunk_bytes",
			"Chunk payload bytes currently on a tier.", []string{"tier"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.accesses
	ch <- c.releases
	ch <- c.fetches
	ch <- c.evictions
	ch <- c.demotions
	ch <- c.bytesMoved
	ch <- c.tierUsedBytes
	ch <- c.chunkBytes
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.client.Metrics()
	ch <- prometheus.MustNewConstMetric(c.accesses, prometheus.CounterValue, float64(m.Accesses.Load()))
	ch <- prometheus.MustNewConstMetric(c.releases, prometheus.CounterValue, float64(m.Releases.Load()))
	ch <- prometheus.MustNewConstMetric(c.fetches, prometheus.CounterValue, float64(m.Fetches.Load()))
	ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(m.Evictions.Load()))
	ch <- prometheus.MustNewConstMetric(c.demotions, prometheus.CounterValue, float64(m.Demotions.Load()))
	ch <- prometheus.MustNewConstMetric(c.bytesMoved, prometheus.CounterValue, float64(m.BytesToAccel.Load()), "to_accelerator")
	ch <- prometheus.MustNewConstMetric(c.bytesMoved, prometheus.CounterValue, float64(m.BytesToHost.Load()), "to_host")
	for _, tier := range []Tier{TierAccelerator, TierHost} {
		ch <- prometheus.MustNewConstMetric(c.tierUsedBytes, prometheus.GaugeValue,
			float64(c.client.alloc.Used(tier)), tier.String())
		ch <- prometheus.MustNewConstMetric(c.chunkBytes, prometheus.GaugeValue,
			float64(c.client.Tracer().ChunkBytes(tier)), tier.String())
	}
}
