package main

import (
	"strings"

	"github.com/relaynet/rudp/pkg/rudp"
)

func parseVariant(s string) (rudp.Variant, error) {
	switch strings.ToLower(s) {
	case "stopwait", "stop-and-wait", "sw":
		return rudp.StopWait, nil
	case "gbn", "go-back-n":
		return rudp.GBN, nil
	case "sr", "selective-repeat":
		return rudp.SR, nil
	case "reno":
		return rudp.RENO, nil
	default:
		return 0, errBadVariant
	}
}
