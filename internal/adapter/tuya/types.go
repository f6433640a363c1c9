package tuya

// Device is a Tuya device with its current data points.
type Device struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Category    string      `json:"category"`
	ProductName string      `json:"product_name,omitempty"`
	Model       string      `json:"model,omitempty"`
	Online      bool        `json:"online"`
	Status      []DataPoint `json:"status"`
}

// DataPoint is one DP code and value, used for both status and commands.
type DataPoint struct {
	Code  string `json:"code"`
	Value any    `json:"value"`
}

// Codes returns the DP codes a device reports.
func (d Device) Codes() []string {
	out := make([]string, len(d.Status))
	for i, dp := range d.Status {
		out[i] = dp.Code
	}
	return out
}
