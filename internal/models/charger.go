package models

type Charger struct {
	ID   string
	Name string
}

// ChargerState is the free-form telemetry document returned by the
// operator's charger state endpoint. Keys vary by charger model, so it
// stays an open map with typed accessors for the values we consume.
type ChargerState map[string]any

// Power returns the instantaneous power draw in kW, zero when the
// operator did not report one.
func (s ChargerState) Power() float64 {
	v, ok := s["totalChargerPower"]
	if !ok {
		return 0
	}

	// JSON numbers decode as float64
	power, ok := v.(float64)
	if !ok {
		return 0
	}
	return power
}
