package metrics

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Simple Prometheus-style metrics for HTTP requests and model calls.
// This is intentionally minimal and in-memory only.

var (
	mu             sync.RWMutex
	requestsTotal  = make(map[reqKey]int64)
	latencyMsSum   = make(map[latKey]int64)
	latencyMsCount = make(map[latKey]int64)
	llmCalls       = make(map[llmKey]int64)
	llmRetries     = make(map[llmKey]int64)

	analysesTotal     = make(map[analysisKey]int64)
	extractionHits    = make(map[string]int64)
	parseFailures     = make(map[string]int64)
	sessionBusyTotal  int64
	retentionAuditDel int64
)

type reqKey struct {
	Method string
	Path   string
	Status int
}

type latKey struct {
	Method string
	Path   string
}

type llmKey struct {
	Provider string
	Model    string
	Outcome  string
}

type analysisKey struct {
	Kind   string
	Status string
}

// RecordRequest increments request counter and records latency.
func RecordRequest(method, path string, status int, latencyMs int64) {
	mu.Lock()
	defer mu.Unlock()

	rk := reqKey{Method: method, Path: path, Status: status}
	requestsTotal[rk]++

	lk := latKey{Method: method, Path: path}
	latencyMsSum[lk] += latencyMs
	latencyMsCount[lk]++
}

// RecordLLMCall counts one finished gateway invocation. outcome is
// "success" or "failed".
func RecordLLMCall(provider, model, outcome string) {
	mu.Lock()
	defer mu.Unlock()
	llmCalls[llmKey{Provider: provider, Model: model, Outcome: outcome}]++
}

// RecordLLMRetry counts one backoff-and-retry inside the gateway.
func RecordLLMRetry(provider, model string) {
	mu.Lock()
	defer mu.Unlock()
	llmRetries[llmKey{Provider: provider, Model: model}]++
}

// RecordAnalysis counts a finished analysis request by kind
// (symptom, medication, report, document) and status code.
func RecordAnalysis(kind, status string) {
	mu.Lock()
	defer mu.Unlock()
	analysesTotal[analysisKey{Kind: kind, Status: status}]++
}

// RecordExtraction adds keyword hits for a category.
func RecordExtraction(category string, hits int) {
	if hits <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	extractionHits[category] += int64(hits)
}

// RecordParseFailure counts model responses that were not valid JSON.
func RecordParseFailure(kind string) {
	mu.Lock()
	defer mu.Unlock()
	parseFailures[kind]++
}

// RecordSessionBusy counts requests rejected because the session already
// had a model call in flight.
func RecordSessionBusy() {
	mu.Lock()
	defer mu.Unlock()
	sessionBusyTotal++
}

// RecordRetentionAudit increments the counter of audit rows deleted by TTL.
func RecordRetentionAudit(deleted int64) {
	if deleted <= 0 {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	retentionAuditDel += deleted
}

// Export returns Prometheus-style metrics text.
func Export() string {
	mu.RLock()
	defer mu.RUnlock()

	var b strings.Builder

	b.WriteString("# HELP medassist_http_requests_total Total HTTP requests\n")
	b.WriteString("# TYPE medassist_http_requests_total counter\n")

	// Sort keys for stable output
	var reqKeys []reqKey
	for k := range requestsTotal {
		reqKeys = append(reqKeys, k)
	}
	sort.Slice(reqKeys, func(i, j int) bool {
		if reqKeys[i].Method != reqKeys[j].Method {
			return reqKeys[i].Method < reqKeys[j].Method
		}
		if reqKeys[i].Path != reqKeys[j].Path {
			return reqKeys[i].Path < reqKeys[j].Path
		}
		return reqKeys[i].Status < reqKeys[j].Status
	})

	for _, k := range reqKeys {
		fmt.Fprintf(&b, "medassist_http_requests_total{method=\"%s\",path=\"%s\",status=\"%d\"} %d\n",
			k.Method, k.Path, k.Status, requestsTotal[k])
	}

	b.WriteString("# HELP medassist_http_request_duration_ms_sum Total request duration in milliseconds\n")
	b.WriteString("# TYPE medassist_http_request_duration_ms_sum counter\n")
	b.WriteString("# HELP medassist_http_request_duration_ms_count Request count for latency metric\n")
	b.WriteString("# TYPE medassist_http_request_duration_ms_count counter\n")

	var latKeys []latKey
	for k := range latencyMsSum {
		latKeys = append(latKeys, k)
	}
	sort.Slice(latKeys, func(i, j int) bool {
		if latKeys[i].Method != latKeys[j].Method {
			return latKeys[i].Method < latKeys[j].Method
		}
		return latKeys[i].Path < latKeys[j].Path
	})

	for _, k := range latKeys {
		fmt.Fprintf(&b, "medassist_http_request_duration_ms_sum{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsSum[k])
		fmt.Fprintf(&b, "medassist_http_request_duration_ms_count{method=\"%s\",path=\"%s\"} %d\n",
			k.Method, k.Path, latencyMsCount[k])
	}

	b.WriteString("# HELP medassist_llm_calls_total Total model gateway invocations\n")
	b.WriteString("# TYPE medassist_llm_calls_total counter\n")
	for _, k := range sortedLLMKeys(llmCalls) {
		fmt.Fprintf(&b, "medassist_llm_calls_total{provider=\"%s\",model=\"%s\",outcome=\"%s\"} %d\n",
			k.Provider, k.Model, k.Outcome, llmCalls[k])
	}

	b.WriteString("# HELP medassist_llm_retries_total Total model gateway retries after a transient failure\n")
	b.WriteString("# TYPE medassist_llm_retries_total counter\n")
	for _, k := range sortedLLMKeys(llmRetries) {
		fmt.Fprintf(&b, "medassist_llm_retries_total{provider=\"%s\",model=\"%s\"} %d\n",
			k.Provider, k.Model, llmRetries[k])
	}

	b.WriteString("# HELP medassist_analyses_total Total analysis requests by kind and status\n")
	b.WriteString("# TYPE medassist_analyses_total counter\n")

	var analysisKeys []analysisKey
	for k := range analysesTotal {
		analysisKeys = append(analysisKeys, k)
	}
	sort.Slice(analysisKeys, func(i, j int) bool {
		if analysisKeys[i].Kind != analysisKeys[j].Kind {
			return analysisKeys[i].Kind < analysisKeys[j].Kind
		}
		return analysisKeys[i].Status < analysisKeys[j].Status
	})
	for _, k := range analysisKeys {
		fmt.Fprintf(&b, "medassist_analyses_total{kind=\"%s\",status=\"%s\"} %d\n", k.Kind, k.Status, analysesTotal[k])
	}

	b.WriteString("# HELP medassist_extraction_hits_total Keyword/value pairs extracted from reports by category\n")
	b.WriteString("# TYPE medassist_extraction_hits_total counter\n")
	for _, c := range sortedStrings(extractionHits) {
		fmt.Fprintf(&b, "medassist_extraction_hits_total{category=\"%s\"} %d\n", c, extractionHits[c])
	}

	b.WriteString("# HELP medassist_parse_failures_total Model responses that were not valid JSON\n")
	b.WriteString("# TYPE medassist_parse_failures_total counter\n")
	for _, k := range sortedStrings(parseFailures) {
		fmt.Fprintf(&b, "medassist_parse_failures_total{kind=\"%s\"} %d\n", k, parseFailures[k])
	}

	b.WriteString("# HELP medassist_session_busy_total Requests rejected while the session had a call in flight\n")
	b.WriteString("# TYPE medassist_session_busy_total counter\n")
	fmt.Fprintf(&b, "medassist_session_busy_total %d\n", sessionBusyTotal)

	b.WriteString("# HELP medassist_retention_audit_deleted_total Total audit rows deleted by TTL\n")
	b.WriteString("# TYPE medassist_retention_audit_deleted_total counter\n")
	fmt.Fprintf(&b, "medassist_retention_audit_deleted_total %d\n", retentionAuditDel)

	return b.String()
}

func sortedLLMKeys(m map[llmKey]int64) []llmKey {
	keys := make([]llmKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Provider != keys[j].Provider {
			return keys[i].Provider < keys[j].Provider
		}
		if keys[i].Model != keys[j].Model {
			return keys[i].Model < keys[j].Model
		}
		return keys[i].Outcome < keys[j].Outcome
	})
	return keys
}

func sortedStrings(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
