package metrics

import "testing"

func TestMetricName(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "adds prefix", input: "uptime_seconds", expected: "molrag_uptime_seconds"},
		{name: "keeps prefixed", input: "molrag_custom_metric", expected: "molrag_custom_metric"},
		{name: "blank returns prefix", input: "", expected: "molrag_"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricName(tt.input); got != tt.expected {
				t.Fatalf("MetricName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestMetricNameWithSubsystem(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name       string
		subsystem  string
		metricName string
		expected   string
	}{
		{name: "subsystem and name", subsystem: "answer", metricName: "route_total", expected: "molrag_answer_route_total"},
		{name: "subsystem trims underscore", subsystem: "_knowledge_", metricName: "query_latency_seconds", expected: "molrag_knowledge_query_latency_seconds"},
		{name: "empty name", subsystem: "answer", metricName: "", expected: "molrag_answer"},
		{name: "empty subsystem", subsystem: "", metricName: "build_info", expected: "molrag_build_info"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := MetricNameWithSubsystem(tt.subsystem, tt.metricName); got != tt.expected {
				t.Fatalf("MetricNameWithSubsystem(%q, %q) = %q, want %q", tt.subsystem, tt.metricName, got, tt.expected)
			}
		})
	}
}
