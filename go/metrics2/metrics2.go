// Package metrics2 exposes counters backed by Prometheus gauges.
package metrics2

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sandialabs/watchr-jenkins-sub000/go/sklog"
)

var (
	// invalidChar is used to force metric and tag names to conform to Prometheus's restrictions.
	invalidChar = regexp.MustCompile("([^a-zA-Z0-9_:])")

	defaultClient = newPromClient(prometheus.DefaultRegisterer)
)

func clean(s string) string {
	return invalidChar.ReplaceAllLiteralString(s, "_")
}

// Counter is a metric which increments or decrements.
type Counter interface {
	Get() int64
	Inc(i int64)
	Dec(i int64)
	Reset()
}

// promCounter implements the Counter interface.
type promCounter struct {
	// i tracks the value of the gauge, because prometheus client lib doesn't
	// support get on Gauge values.
	i     int64
	gauge prometheus.Gauge
}

func (c *promCounter) Get() int64 {
	return atomic.LoadInt64(&c.i)
}

func (c *promCounter) Inc(i int64) {
	c.gauge.Set(float64(atomic.AddInt64(&c.i, i)))
}

func (c *promCounter) Dec(i int64) {
	c.gauge.Set(float64(atomic.AddInt64(&c.i, -i)))
}

func (c *promCounter) Reset() {
	atomic.StoreInt64(&c.i, 0)
	c.gauge.Set(0)
}

type promClient struct {
	registerer prometheus.Registerer

	mutex     sync.Mutex
	gaugeVecs map[string]*prometheus.GaugeVec
	counters  map[string]*promCounter
}

func newPromClient(registerer prometheus.Registerer) *promClient {
	return &promClient{
		registerer: registerer,
		gaugeVecs:  map[string]*prometheus.GaugeVec{},
		counters:   map[string]*promCounter{},
	}
}

// commonGet returns a clean measurement name, clean tags, the sorted tag
// keys, a key unique to the metric and a key unique to the collection of
// metrics sharing the measurement name and tag keys.
func commonGet(measurement string, tags ...map[string]string) (string, map[string]string, []string, string, string) {
	measurement = clean(measurement)

	cleanTags := map[string]string{}
	for _, t := range tags {
		for k, v := range t {
			cleanTags[clean(k)] = v
		}
	}
	keys := make([]string, 0, len(cleanTags))
	for k := range cleanTags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	gaugeKeySrc := []string{measurement}
	for _, key := range keys {
		gaugeKeySrc = append(gaugeKeySrc, key, cleanTags[key])
	}
	gaugeKey := strings.Join(gaugeKeySrc, "-")
	gaugeVecKey := fmt.Sprintf("%s %v", measurement, keys)
	return measurement, cleanTags, keys, gaugeKey, gaugeVecKey
}

func (p *promClient) getCounter(name string, tags ...map[string]string) Counter {
	measurement, cleanTags, keys, gaugeKey, gaugeVecKey := commonGet(name, tags...)

	p.mutex.Lock()
	defer p.mutex.Unlock()
	if ret, ok := p.counters[gaugeKey]; ok {
		return ret
	}

	gaugeVec, ok := p.gaugeVecs[gaugeVecKey]
	if !ok {
		gaugeVec = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: measurement,
				Help: measurement,
			},
			keys,
		)
		if err := p.registerer.Register(gaugeVec); err != nil {
			are, isAlready := err.(prometheus.AlreadyRegisteredError)
			if !isAlready {
				sklog.Fatalf("Failed to register %q: %s", measurement, err)
			}
			gaugeVec = are.ExistingCollector.(*prometheus.GaugeVec)
		}
		p.gaugeVecs[gaugeVecKey] = gaugeVec
	}
	gauge, err := gaugeVec.GetMetricWith(prometheus.Labels(cleanTags))
	if err != nil {
		sklog.Fatalf("Failed to get gauge: %s", err)
	}
	ret := &promCounter{
		gauge: gauge,
	}
	p.counters[gaugeKey] = ret
	return ret
}

// GetCounter returns the Counter with the given name and tags, creating it
// if needed. Repeated calls with the same name and tags return the same
// Counter.
func GetCounter(name string, tags ...map[string]string) Counter {
	return defaultClient.getCounter(name, tags...)
}
