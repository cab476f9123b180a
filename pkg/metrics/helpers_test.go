package metrics

import (
	"fmt"

	dto "github.com/prometheus/client_model/go"
)

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}

// sample returns the first series of name carrying every label pair in kv.
func sample(mfs []*dto.MetricFamily, name string, kv ...string) (*dto.Metric, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return nil, fmt.Errorf("metric %q not found", name)
	}
next:
	for _, metric := range mf.GetMetric() {
		for i := 0; i+1 < len(kv); i += 2 {
			if !matchesLabel(metric.GetLabel(), kv[i], kv[i+1]) {
				continue next
			}
		}
		return metric, nil
	}
	return nil, fmt.Errorf("metric %q has no series %v", name, kv)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := sample(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetCounter().GetValue(), nil
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	metric, err := sample(mfs, name, label, value)
	if err != nil {
		return 0, err
	}
	return metric.GetGauge().GetValue(), nil
}
