package output

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strconv"

	"streamline-hq/streamline/pkg/vpncfg"
)

// csvContent renders the detailed CSV. Base header is
// Config,Protocol,Host,Port,Ping_MS,Reachable,Source, extended with
// Handshake and one <Name>_OK column per app test when enabled. Unknown
// values render as empty cells; Ping_MS is rounded to two decimals.
func csvContent(results []*vpncfg.ConfigResult, opts Options) []byte {
	header := []string{"Config", "Protocol", "Host", "Port", "Ping_MS", "Reachable", "Source"}
	if opts.IncludeHandshake {
		header = append(header, "Handshake")
	}
	appTests := append([]string(nil), opts.AppTestNames...)
	sort.Strings(appTests)
	for _, name := range appTests {
		header = append(header, name+"_OK")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(header)

	for _, result := range results {
		row := []string{
			result.RawConfig,
			result.Protocol.DisplayName(),
			result.Host,
			portCell(result.Port),
			pingCell(result),
			strconv.FormatBool(result.IsReachable),
			result.SourceURL,
		}
		if opts.IncludeHandshake {
			row = append(row, boolCell(result.HandshakeOK))
		}
		for _, name := range appTests {
			row = append(row, boolCell(result.AppTestResults[name]))
		}
		w.Write(row)
	}

	w.Flush()
	return buf.Bytes()
}

func portCell(port int) string {
	if port == 0 {
		return ""
	}
	return strconv.Itoa(port)
}

func pingCell(result *vpncfg.ConfigResult) string {
	ms, ok := result.PingMS()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%.2f", ms)
}

func boolCell(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
