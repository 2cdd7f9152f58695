// Package output renders the scrape response and serves it over HTTP.
//
// The domain series are a wire contract inherited by every dashboard built
// on this exporter: exact metric names, label sets, label ordering, and
// 2-decimal value formatting. They are rendered by hand for that reason;
// the Prometheus client library is used for the exporter's own telemetry,
// which carries no such contract.
package output

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Peuqui/endlessh-exporter/internal/app"
	"github.com/Peuqui/endlessh-exporter/internal/domain"
	"github.com/Peuqui/endlessh-exporter/pkg/promsafe"
)

const startedLabelLayout = "2006-01-02 15:04:05"

// ExpositionRenderer implements app.Renderer as a Prometheus text
// exposition.
type ExpositionRenderer struct{}

func NewExpositionRenderer() *ExpositionRenderer {
	return &ExpositionRenderer{}
}

func (r *ExpositionRenderer) Render(agg *app.Aggregate) string {
	var b strings.Builder

	b.WriteString("# HELP endlessh_total_connections_total Total SSH connections since exporter start\n")
	b.WriteString("# TYPE endlessh_total_connections_total counter\n")
	fmt.Fprintf(&b, "endlessh_total_connections_total %d\n", agg.TotalCounter)

	b.WriteString("# HELP endlessh_total_connections Connections in the current display set\n")
	b.WriteString("# TYPE endlessh_total_connections gauge\n")
	fmt.Fprintf(&b, "endlessh_total_connections %d\n", len(agg.Display))

	b.WriteString("# HELP endlessh_active_connections Currently active SSH connections\n")
	b.WriteString("# TYPE endlessh_active_connections gauge\n")
	fmt.Fprintf(&b, "endlessh_active_connections %d\n", agg.Active)

	b.WriteString("# HELP endlessh_max_trap_duration_seconds Maximum trap duration in seconds\n")
	b.WriteString("# TYPE endlessh_max_trap_duration_seconds gauge\n")
	fmt.Fprintf(&b, "endlessh_max_trap_duration_seconds %.2f\n", agg.MaxDuration)

	b.WriteString("# HELP endlessh_avg_trap_duration_seconds Average trap duration in seconds\n")
	b.WriteString("# TYPE endlessh_avg_trap_duration_seconds gauge\n")
	fmt.Fprintf(&b, "endlessh_avg_trap_duration_seconds %.2f\n", agg.AvgDuration)

	b.WriteString("# HELP endlessh_connection_info Individual connection information\n")
	b.WriteString("# TYPE endlessh_connection_info gauge\n")
	r.renderConnections(&b, agg.Display)

	for _, stat := range agg.PerIP {
		fmt.Fprintf(&b,
			"endlessh_connections_per_ip{ip=%q,country=%q,country_code=%q,city=%q,latitude=%q,longitude=%q,max_trap_duration=%q,avg_trap_duration=%q} %d\n",
			promsafe.LabelValue(stat.IP),
			promsafe.LabelValue(stat.Location.Country),
			promsafe.LabelValue(stat.Location.CountryCode),
			promsafe.LabelValue(stat.Location.City),
			formatCoord(stat.Location.Lat),
			formatCoord(stat.Location.Lon),
			fmt.Sprintf("%.2f", stat.MaxDuration),
			fmt.Sprintf("%.2f", stat.AvgDuration),
			stat.Count,
		)
	}

	fmt.Fprintf(&b, "endlessh_unique_ips %d\n", agg.UniqueIPs)

	for _, stat := range agg.PerCountry {
		fmt.Fprintf(&b, "endlessh_connections_per_country{country=%q} %d\n",
			promsafe.LabelValue(stat.Country), stat.Count)
	}

	return b.String()
}

// renderConnections emits one series per display connection. sort_order is
// the rank in the already-sorted display set; ip_group is a small integer
// assigned per distinct origin in first-seen order, used by dashboards for
// row grouping only.
func (r *ExpositionRenderer) renderConnections(b *strings.Builder, display []domain.ConnectionRecord) {
	ipGroups := make(map[string]int)
	nextGroup := 0

	for idx, rec := range display {
		group, ok := ipGroups[rec.IP]
		if !ok {
			group = nextGroup
			ipGroups[rec.IP] = group
			nextGroup++
		}

		fmt.Fprintf(b,
			"endlessh_connection_info{fd=%q,ip=%q,port=%q,country=%q,city=%q,status=%q,started=%q,sort_order=%q,ip_group=%q} %.2f\n",
			promsafe.LabelValue(rec.FD),
			promsafe.LabelValue(rec.IP),
			promsafe.LabelValue(rec.Port),
			promsafe.LabelValue(rec.Country),
			promsafe.LabelValue(rec.City),
			rec.Status,
			rec.Started.Local().Format(startedLabelLayout),
			strconv.Itoa(idx),
			strconv.Itoa(group),
			rec.Duration,
		)
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
