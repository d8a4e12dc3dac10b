package models

import "time"

// Zone is a monitored neighborhood. Keyed by (Region, Subregion, Locality).
type Zone struct {
	Region        string  `json:"-"`
	Subregion     string  `json:"-"`
	Locality      string  `json:"-"`
	NX            int     `json:"nx"`
	NY            int     `json:"ny"`
	RiverSensorID string  `json:"river_sensor"`
	Name          string  `json:"name"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
}

// Observation is one-hour rainfall for a grid cell at an aligned base time.
type Observation struct {
	NX        int       `json:"nx"`
	NY        int       `json:"ny"`
	BaseDate  string    `json:"baseDate"`
	BaseTime  string    `json:"baseTime"`
	Rainfall  float64   `json:"rainfall"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// RiskAssessment is the per-request result of the risk pipeline. Method and Degraded
// are internal and never serialized.
type RiskAssessment struct {
	Rainfall   float64 `json:"-"`
	RiverLevel float64 `json:"-"`
	RiskLevel  string  `json:"-"`
	AreaName   string  `json:"-"`
	DataSource string  `json:"-"`

	Method   string `json:"-"` // "model" or "rule"
	Degraded bool   `json:"-"` // rainfall defaulted to 0.0 after a provider failure
}
