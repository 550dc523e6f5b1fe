package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/haverlund/elmdiag/catalog"
	"github.com/haverlund/elmdiag/uds"
)

// readDidScalar reads one DID and runs it through the catalog decoder.
func (e *Engine) readDidScalar(ctx context.Context, client *uds.Client, did uint16) (float64, error) {
	def, ok := catalog.ByID(did)
	if !ok || def.Decode == nil {
		return 0, fmt.Errorf("engine: DID 0x%04X has no scalar decoder", did)
	}
	data, err := client.ReadDataByIdentifier(ctx, did, defaultDeadline)
	if err != nil {
		return 0, err
	}
	return def.Decode(data)
}

// ReadEngineSnapshot reads the three engine DIDs concurrently — they
// land on AdapterController's single queue regardless, but errgroup
// keeps the call sites and error aggregation simple.
func (e *Engine) ReadEngineSnapshot(ctx context.Context) (EngineData, error) {
	_, client, err := e.controllerAndClient()
	if err != nil {
		return EngineData{}, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return EngineData{}, err
	}

	var data EngineData
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.readDidScalar(gctx, client, 0xD41F)
		if err != nil {
			return err
		}
		data.RPM = v
		return nil
	})
	g.Go(func() error {
		v, err := e.readDidScalar(gctx, client, 0xD400)
		if err != nil {
			return err
		}
		data.CoolantTempC = v
		return nil
	})
	g.Go(func() error {
		v, err := e.readDidScalar(gctx, client, 0xD410)
		if err != nil {
			return err
		}
		data.BatteryVoltageV = v
		return nil
	})
	if err := g.Wait(); err != nil {
		return EngineData{}, err
	}
	return data, nil
}

// ReadDpfSnapshot reads soot loading and regeneration status.
func (e *Engine) ReadDpfSnapshot(ctx context.Context) (DpfData, error) {
	_, client, err := e.controllerAndClient()
	if err != nil {
		return DpfData{}, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return DpfData{}, err
	}

	soot, err := e.readDidScalar(ctx, client, 0xD546)
	if err != nil {
		return DpfData{}, err
	}
	raw, err := client.ReadDataByIdentifier(ctx, 0xD7C4, defaultDeadline)
	if err != nil {
		return DpfData{}, err
	}
	if len(raw) < 1 {
		return DpfData{}, fmt.Errorf("engine: dpf status reply too short")
	}
	return DpfData{SootLoadingGPerL: soot, RegenStatus: catalog.DpfStatusName(raw[0])}, nil
}

// ReadInjectorCorrections reads DID 0xD482 and splits its 8 payload
// bytes into four big-endian signed 16-bit corrections, each scaled by
// 0.01 mm³ (spec.md §4.5, §8).
func (e *Engine) ReadInjectorCorrections(ctx context.Context) ([]float64, error) {
	_, client, err := e.controllerAndClient()
	if err != nil {
		return nil, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return nil, err
	}
	data, err := client.ReadDataByIdentifier(ctx, 0xD482, defaultDeadline)
	if err != nil {
		return nil, err
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("engine: injector corrections reply has %d bytes, want 8", len(data))
	}
	out := make([]float64, 4)
	for i := 0; i < 4; i++ {
		raw := int16(uint16(data[2*i])<<8 | uint16(data[2*i+1]))
		out[i] = float64(raw) * 0.01
	}
	return out, nil
}

// ReadDtcs selects the named ECU and reads its fault codes with status
// mask 0xFF, preserving on-wire order.
func (e *Engine) ReadDtcs(ctx context.Context, code string) ([]catalog.Dtc, error) {
	if err := e.selectByCode(ctx, code); err != nil {
		return nil, err
	}
	_, client, err := e.controllerAndClient()
	if err != nil {
		return nil, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return nil, err
	}
	records, err := client.ReadDtcInformation(ctx, 0xFF, slowDeadline)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.Dtc, 0, len(records))
	for _, r := range records {
		out = append(out, catalog.DecodeDtc(r.High, r.Low, r.Status))
	}
	return out, nil
}

// ClearDtcs selects the named ECU and clears all DTC groups.
func (e *Engine) ClearDtcs(ctx context.Context, code string) (bool, error) {
	if err := e.selectByCode(ctx, code); err != nil {
		return false, err
	}
	_, client, err := e.controllerAndClient()
	if err != nil {
		return false, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return false, err
	}
	if err := client.ClearDiagnosticInformation(ctx, slowDeadline); err != nil {
		return false, err
	}
	return true, nil
}

// IdentifyEcu selects the named ECU and reads its part number,
// calibration, and hardware number DIDs. Any read failure or an empty
// ASCII result becomes "N/A" rather than propagating (spec.md §4.5).
func (e *Engine) IdentifyEcu(ctx context.Context, code string) (EcuIdentification, error) {
	if err := e.selectByCode(ctx, code); err != nil {
		return EcuIdentification{}, err
	}
	_, client, err := e.controllerAndClient()
	if err != nil {
		return EcuIdentification{}, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return EcuIdentification{}, err
	}
	return EcuIdentification{
		PartNumber:  e.readAsciiDid(ctx, client, 0xF080),
		Calibration: e.readAsciiDid(ctx, client, 0xF0FE),
		HardwareNum: e.readAsciiDid(ctx, client, 0xF091),
	}, nil
}

func (e *Engine) readAsciiDid(ctx context.Context, client *uds.Client, did uint16) string {
	data, err := client.ReadDataByIdentifier(ctx, did, defaultDeadline)
	if err != nil {
		return "N/A"
	}
	var b strings.Builder
	for _, c := range data {
		if c >= 0x20 && c <= 0x7E {
			b.WriteByte(c)
		}
	}
	s := strings.TrimSpace(b.String())
	if s == "" {
		return "N/A"
	}
	return s
}

// ScanDidGroups selects the named ECU and probes each 0xD0..0xDF group
// prefix with a trailing-zero DID, marking it active when the reply is
// neither NoData nor negative. Scan order is preserved via index, even
// though the probes fan out concurrently.
func (e *Engine) ScanDidGroups(ctx context.Context, code string) ([]GroupScanResult, error) {
	if err := e.selectByCode(ctx, code); err != nil {
		return nil, err
	}
	_, client, err := e.controllerAndClient()
	if err != nil {
		return nil, err
	}
	if err := e.ensureExtendedSession(ctx, client); err != nil {
		return nil, err
	}

	prefixes := make([]byte, 0, 16)
	for p := 0xD0; p <= 0xDF; p++ {
		prefixes = append(prefixes, byte(p))
	}
	results := make([]GroupScanResult, len(prefixes))
	g, gctx := errgroup.WithContext(ctx)
	for i, prefix := range prefixes {
		i, prefix := i, prefix
		g.Go(func() error {
			did := uint16(prefix)<<8 | 0x00
			_, err := client.ReadDataByIdentifier(gctx, did, defaultDeadline)
			active := err == nil
			if err != nil && !isBenignScanError(err) {
				return err
			}
			results[i] = GroupScanResult{GroupPrefix: prefix, Active: active}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// isBenignScanError additionally treats a negative response as benign —
// for a group probe it just means that group isn't present, not that
// the exchange itself misbehaved.
func isBenignScanError(err error) bool {
	if isBenignSessionError(err) {
		return true
	}
	var neg uds.NegativeResponse
	return errors.As(err, &neg)
}
