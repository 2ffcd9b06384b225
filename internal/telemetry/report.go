package telemetry

// Defaults applied when a report omits its sensor readings. Zero is a
// valid reading, so omission is detected via pointer fields rather than
// zero values.
const (
	DefaultTemp     = 20.0
	DefaultHumidity = 50.0
)

// Report is a telemetry report as submitted by a device. Field names
// follow the device-side payload convention, mixed casing included.
type Report struct {
	DeviceID string   `json:"deviceId"`
	Type     string   `json:"Type"`
	ModelID  string   `json:"modelId"`
	Status   string   `json:"Status"`
	Temp     *float64 `json:"temp"`
	Humidity *float64 `json:"Humidity"`
	TS       string   `json:"ts"`
}

// TempValue returns the reported temperature, or DefaultTemp when the
// report omitted it.
func (r Report) TempValue() float64 {
	if r.Temp == nil {
		return DefaultTemp
	}
	return *r.Temp
}

// HumidityValue returns the reported humidity, or DefaultHumidity when
// the report omitted it.
func (r Report) HumidityValue() float64 {
	if r.Humidity == nil {
		return DefaultHumidity
	}
	return *r.Humidity
}
