// Package stats holds the per-value transition counters incremented by the
// presence tracker and renders them in the Prometheus text exposition format.
//
// Counter names map to metric families:
//
//	home → presence_home_total{value="..."}
//	away → presence_away_total{value="..."}
//
// An optional gauge function adds presence_present, the number of values
// currently HOME.
package stats
