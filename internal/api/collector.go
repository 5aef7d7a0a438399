package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// storeCollector reports what the result store holds at scrape time. Rounds
// are played by other processes, so this is how their outcomes reach the
// serve process's /metrics.
type storeCollector struct {
	reader Reader
	log    zerolog.Logger

	rounds     *prometheus.Desc
	matches    *prometheus.Desc
	exclusions *prometheus.Desc
}

func newStoreCollector(reader Reader, log zerolog.Logger) *storeCollector {
	return &storeCollector{
		reader: reader,
		log:    log,
		rounds: prometheus.NewDesc("gauntlet_stored_rounds",
			"Rounds held in the result store by round and status",
			[]string{"round", "status"}, nil),
		matches: prometheus.NewDesc("gauntlet_stored_matches",
			"Matches held in the result store by round and round status",
			[]string{"round", "status"}, nil),
		exclusions: prometheus.NewDesc("gauntlet_stored_exclusions",
			"Strategies excluded before play in stored rounds",
			[]string{"round"}, nil),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rounds
	ch <- c.matches
	ch <- c.exclusions
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	type key struct{ round, status string }
	rounds := make(map[key]int)
	matches := make(map[key]int)
	exclusions := make(map[string]int)

	ids, err := c.reader.ListRunIDs()
	if err != nil {
		c.log.Warn().Err(err).Msg("listing runs for metrics")
		return
	}
	for _, id := range ids {
		run, err := c.reader.LoadRun(id)
		if err != nil {
			c.log.Warn().Err(err).Str("run_id", id).Msg("loading run for metrics")
			continue
		}
		for _, r := range run.Rounds {
			k := key{round: r.Round.Name(), status: string(r.Status)}
			rounds[k]++
			matches[k] += r.Matches
			exclusions[k.round] += len(r.Excluded)
		}
	}

	for k, n := range rounds {
		ch <- prometheus.MustNewConstMetric(c.rounds, prometheus.GaugeValue, float64(n), k.round, k.status)
		ch <- prometheus.MustNewConstMetric(c.matches, prometheus.GaugeValue, float64(matches[k]), k.round, k.status)
	}
	for round, n := range exclusions {
		ch <- prometheus.MustNewConstMetric(c.exclusions, prometheus.GaugeValue, float64(n), round)
	}
}

var _ prometheus.Collector = (*storeCollector)(nil)
