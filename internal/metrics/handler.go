package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON response for the metrics endpoint.
type Summary struct {
	Mode         string           `json:"mode"`
	SCIM         httpSummary      `json:"scim"`
	Admin        httpSummary      `json:"admin"`
	Provisioning provisioningInfo `json:"provisioning"`
	RateLimit    rateLimitInfo    `json:"rateLimit"`
	Recorder     recorderInfo     `json:"recorder"`
	Auth         authInfo         `json:"auth"`
	DB           dbInfo           `json:"db"`
	Server       serverInfo       `json:"server"`
}

type httpSummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type provisioningInfo struct {
	TotalOperations  float64 `json:"totalOperations"`
	FailedOperations float64 `json:"failedOperations"`
}

type rateLimitInfo struct {
	Rejections float64 `json:"rejections"`
}

type recorderInfo struct {
	BufferSize   float64 `json:"bufferSize"`
	TotalFlushes float64 `json:"totalFlushes"`
	FlushErrors  float64 `json:"flushErrors"`
	Stamps       float64 `json:"stamps"`
}

type authInfo struct {
	Failures  float64 `json:"failures"`
	Successes float64 `json:"successes"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

// Handler returns an http.HandlerFunc that serves live metrics in JSON format.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m.handleLive(w)
	}
}

func (m *Metrics) handleLive(w http.ResponseWriter) {
	families, err := m.registry.Gather()
	if err != nil {
		http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
		return
	}

	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	summary := Summary{
		Mode: "live",
		SCIM: httpSummary{
			TotalRequests: sumCounterWithLabel(fam["scimgate_http_requests_total"], "kind", "scim"),
			ErrorRate:     computeErrorRateWithLabel(fam["scimgate_http_requests_total"], "kind", "scim"),
			P50Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.50, "kind", "scim"),
			P95Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.95, "kind", "scim"),
			P99Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.99, "kind", "scim"),
		},
		Admin: httpSummary{
			TotalRequests: sumCounterWithLabel(fam["scimgate_http_requests_total"], "kind", "admin"),
			ErrorRate:     computeErrorRateWithLabel(fam["scimgate_http_requests_total"], "kind", "admin"),
			P50Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.50, "kind", "admin"),
			P95Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.95, "kind", "admin"),
			P99Latency:    histogramPercentileWithLabel(fam["scimgate_http_request_duration_seconds"], 0.99, "kind", "admin"),
		},
		Provisioning: provisioningInfo{
			TotalOperations:  sumCounter(fam["scimgate_provisioning_operations_total"]),
			FailedOperations: counterWithLabel(fam["scimgate_provisioning_operations_total"], "status", "error"),
		},
		RateLimit: rateLimitInfo{
			Rejections: sumCounter(fam["scimgate_ratelimit_rejections_total"]),
		},
		Recorder: recorderInfo{
			BufferSize:   gaugeValue(fam["scimgate_recorder_buffer_size"]),
			TotalFlushes: sumCounter(fam["scimgate_recorder_flushes_total"]),
			FlushErrors:  counterWithLabel(fam["scimgate_recorder_flushes_total"], "status", "error"),
			Stamps:       counterValue(fam["scimgate_recorder_stamps_total"]),
		},
		Auth: authInfo{
			Failures:  sumCounter(fam["scimgate_auth_failures_total"]),
			Successes: sumCounter(fam["scimgate_auth_successes_total"]),
		},
		DB: dbInfo{
			TotalConns:    gaugeValue(fam["scimgate_db_pool_total_conns"]),
			IdleConns:     gaugeValue(fam["scimgate_db_pool_idle_conns"]),
			AcquiredConns: gaugeValue(fam["scimgate_db_pool_acquired_conns"]),
		},
		Server: serverInfo{
			StartTime:     gaugeValue(fam["scimgate_server_start_time_seconds"]),
			UptimeSeconds: float64(time.Now().Unix()) - gaugeValue(fam["scimgate_server_start_time_seconds"]),
		},
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	_ = json.NewEncoder(w).Encode(summary)
}

// --- Prometheus metric helpers ---

func sumCounter(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetGauge() != nil {
		return ms[0].GetGauge().GetValue()
	}
	return 0
}

func counterValue(f *dto.MetricFamily) float64 {
	if f == nil {
		return 0
	}
	ms := f.GetMetric()
	if len(ms) == 0 {
		return 0
	}
	if ms[0].GetCounter() != nil {
		return ms[0].GetCounter().GetValue()
	}
	return 0
}

func counterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == labelName && lp.GetValue() == labelValue {
				if m.GetCounter() != nil {
					total += m.GetCounter().GetValue()
				}
			}
		}
	}
	return total
}

func hasLabel(m *dto.Metric, name, value string) bool {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name && lp.GetValue() == value {
			return true
		}
	}
	return false
}

func sumCounterWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total float64
	for _, m := range f.GetMetric() {
		if hasLabel(m, labelName, labelValue) && m.GetCounter() != nil {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func computeErrorRateWithLabel(f *dto.MetricFamily, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}
	var total, errors float64
	for _, m := range f.GetMetric() {
		if !hasLabel(m, labelName, labelValue) || m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() == "status_code" {
				code := lp.GetValue()
				if len(code) > 0 && code[0] >= '4' {
					errors += v
				}
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errors / total
}

// histogramPercentileWithLabel computes a percentile from aggregated histogram
// buckets matching a label, using linear interpolation.
func histogramPercentileWithLabel(f *dto.MetricFamily, q float64, labelName, labelValue string) float64 {
	if f == nil {
		return 0
	}

	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		if !hasLabel(m, labelName, labelValue) {
			continue
		}
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}

	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)

	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			// Linear interpolation within this bucket.
			bucketCount := b.cumulativeCount - prevCount
			if bucketCount == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(bucketCount)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}

	// If we didn't find it, return the last finite bucket upper bound.
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
