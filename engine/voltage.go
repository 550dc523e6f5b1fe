package engine

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// ReadAdapterVoltage issues the ELM327 "ATRV" command and parses its
// reply ("12.6V") into a plain float. Purely informational — unlike the
// DID reads, this never goes through session control or keep-alive, and
// its failure never gates any other operation (SPEC_FULL.md §7).
func (e *Engine) ReadAdapterVoltage(ctx context.Context) (float64, error) {
	ctrl, _, err := e.controllerAndClient()
	if err != nil {
		return 0, err
	}
	reply, err := ctrl.Exchange(ctx, "ATRV", defaultDeadline)
	if err != nil {
		return 0, err
	}
	line := strings.TrimSpace(strings.SplitN(string(reply), "\r", 2)[0])
	line = strings.TrimSuffix(strings.ToUpper(line), "V")
	v, err := strconv.ParseFloat(line, 64)
	if err != nil {
		return 0, fmt.Errorf("engine: unparseable adapter voltage reply %q: %w", reply, err)
	}
	return v, nil
}
