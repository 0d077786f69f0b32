// Package parsers reads suspicious-host lists for the global host set.
package parsers

import (
	"bufio"
	"io"
	"net/netip"
	"strings"
	"unicode"

	"github.com/haukened/rr-ids/internal/ids/common/log"
	"github.com/haukened/rr-ids/internal/ids/common/utils"
)

// ParseHostList parses a newline-delimited host list and returns canonical
// host names in first-seen order.
//
// Each line is either a bare name or a hosts-file entry ("0.0.0.0 a.example b.example"),
// whose leading address is ignored. Comments start with '#', whole-line or
// inline. Wildcards and a leading "." are stripped; names that are not
// plausible FQDNs are skipped.
func ParseHostList(r io.Reader, source string, logger log.Logger) ([]string, error) {
	logger = log.OrNoop(logger)
	scanner := bufio.NewScanner(r)

	seen := make(map[string]struct{})
	out := make([]string, 0, 256)
	logger.Debug(map[string]any{"source": source}, "parse_host_list_start")

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\uFEFF")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if _, err := netip.ParseAddr(fields[0]); err == nil {
			fields = fields[1:]
		}

		for _, raw := range fields {
			name := normalizeHost(raw)
			if !isValidFQDN(name) {
				logger.Debug(map[string]any{"line": lineNum, "raw": raw}, "skip_invalid_fqdn")
				continue
			}
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}

	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"source": source, "error": err.Error()}, "parse_host_list_scan_error")
		return nil, err
	}
	logger.Debug(map[string]any{"source": source, "count": len(out)}, "parse_host_list_done")
	return out, nil
}

func normalizeHost(raw string) string {
	raw = strings.TrimPrefix(raw, "*.")
	raw = strings.TrimPrefix(raw, ".")
	return utils.CanonicalHost(raw)
}

// isValidFQDN requires at least two labels of 1..63 characters, at most 255
// characters overall, and a first label starting with a letter or digit.
func isValidFQDN(name string) bool {
	if len(name) > 255 {
		return false
	}
	labels := strings.Split(name, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if len(label) == 0 || len(label) > 63 || strings.ContainsAny(label, "*@/") {
			return false
		}
	}
	first := []rune(labels[0])[0]
	return unicode.IsLetter(first) || unicode.IsDigit(first)
}
