package liveness

import (
	"regexp"
	"strconv"
	"strings"
)

// latencyPattern matches the round-trip field of ping output across the
// platform locales seen in the field: "time=0.52 ms", "time<1ms",
// "Zeit=3ms", "temps=4 ms", "tiempo=1ms", "tempo=2ms", "время=5мс",
// "时间=6ms". Decimal commas are accepted.
var latencyPattern = regexp.MustCompile(`(?i)(?:time|zeit|temps|tiempo|tempo|время|时间)\s*[=<]\s*([0-9]+(?:[.,][0-9]+)?)`)

// ParseLatency extracts the round-trip time in milliseconds from ping
// output. It reports false when no recognizable field is present.
func ParseLatency(output string) (float64, bool) {
	m := latencyPattern.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
