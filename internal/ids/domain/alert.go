package domain

import (
	"strings"
	"time"
)

// Heuristic identifies the detection that raised an alert.
type Heuristic string

const (
	HeuristicRepetition  Heuristic = "repetition"
	HeuristicRedirection Heuristic = "redirection"
	HeuristicHost        Heuristic = "blacklisted-host"
)

// Alert is a heuristic hit, written to the alert journal.
type Alert struct {
	Time        time.Time         `json:"ts"`
	Heuristic   Heuristic         `json:"hId"`
	Source      string            `json:"srcip"`
	Destination string            `json:"dstip,omitempty"`
	Host        string            `json:"host,omitempty"`
	URI         string            `json:"uri,omitempty"`
	Info        map[string]string `json:"info,omitempty"`
}

// ParseInfo decodes the "key|value|key|value" info encoding into a map.
// A trailing key without a value is dropped.
func ParseInfo(info string) map[string]string {
	out := make(map[string]string)
	if info == "" {
		return out
	}
	parts := strings.Split(info, "|")
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == "" {
			continue
		}
		out[parts[i]] = parts[i+1]
	}
	return out
}
