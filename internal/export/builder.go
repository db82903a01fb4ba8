// internal/export/builder.go
package export

import (
	"errors"
	"time"

	"go.uber.org/zap"

	cfg "github.com/tamzrod/lcloud/internal/config"
	emodbus "github.com/tamzrod/lcloud/internal/export/modbus"
)

// Build wires a Publisher to a Modbus endpoint from config.
// Assumes config has already passed validation and normalization.
// The returned closer releases the endpoint connection.
func Build(se *cfg.StatusExportConfig, src StatsSource, log *zap.Logger) (*Publisher, func() error, error) {
	if se == nil {
		return nil, nil, errors.New("export: status_export not configured")
	}

	cli, err := emodbus.NewEndpointClient(emodbus.Config{
		Endpoint: se.Endpoint,
		Timeout:  time.Duration(se.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	w := NewStatusWriter(Plan{
		Endpoint: se.Endpoint,
		UnitID:   se.UnitID,
		BaseSlot: se.BaseSlot,
	}, cli)

	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("endpoint", se.Endpoint), zap.Uint8("unit_id", se.UnitID))

	p := NewPublisher(src, w, time.Duration(se.IntervalMs)*time.Millisecond, log)
	return p, cli.Close, nil
}
