package dashboard

// Option is one entry of a faculty, building or floor selector.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// All is the selector value meaning "no restriction".
const All = "all"

// Filter narrows a report to one faculty, building and floor.
type Filter struct {
	Faculty  string
	Building string
	Floor    string
}

func normalize(v string) string {
	if v == All {
		return ""
	}
	return v
}

func (f Filter) params() map[string]string {
	return map[string]string{
		"faculty":  normalize(f.Faculty),
		"building": normalize(f.Building),
		"floor":    normalize(f.Floor),
	}
}

// Summary aggregates power and cost over a period.
type Summary struct {
	TotalDaya float64 `json:"total_daya"`
	AvgDaya   float64 `json:"avg_daya"`
	TotalCost float64 `json:"total_cost"`
	AvgCost   float64 `json:"avg_cost"`
}

// PhaseReading is a three-phase sample.
type PhaseReading struct {
	Timestamp string  `json:"timestamp"`
	R         float64 `json:"R"`
	S         float64 `json:"S"`
	T         float64 `json:"T"`
}

type HourlyUsage struct {
	Hour   string  `json:"hour"`
	Cost   float64 `json:"cost"`
	Energy float64 `json:"energy"`
}

type DailyUsage struct {
	Timestamp string  `json:"timestamp"`
	Cost      float64 `json:"cost"`
	Energy    float64 `json:"energy"`
	Phase1    float64 `json:"phase 1"`
	Phase2    float64 `json:"phase 2"`
	Phase3    float64 `json:"phase 3"`
}

// DailyReport is the payload of /api/daily.
type DailyReport struct {
	ChartData     []PhaseReading `json:"chart_data"`
	HourlyData    []HourlyUsage  `json:"hourly_data"`
	Today         Summary        `json:"today_data"`
	PreviousMonth *Summary       `json:"prev_month_data"`
}

// MonthlyReport is the payload of /api/monthly.
type MonthlyReport struct {
	ChartData     []PhaseReading `json:"chart_data"`
	DailyData     []DailyUsage   `json:"daily_data"`
	Month         Summary        `json:"month_data"`
	PreviousMonth *Summary       `json:"prev_month_data"`
}

type PowerReading struct {
	Timestamp string  `json:"timestamp"`
	Power     float64 `json:"power"`
}

// NowReport is the payload of /api/now.
type NowReport struct {
	ChartData     []PowerReading `json:"chart_data"`
	Today         Summary        `json:"today_data"`
	PreviousMonth *Summary       `json:"prev_month_data"`
}

// HeatmapCell is one (weekday, hour) reading. Day runs 1..7, Monday first.
type HeatmapCell struct {
	Day   int     `json:"day"`
	Hour  int     `json:"hour"`
	Value float64 `json:"value"`
}

// HeatmapReport is the payload of /api/heatmap.
type HeatmapReport struct {
	Dates struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"dates"`
	Heatmap []HeatmapCell `json:"heatmap"`
}

type FacultyUsage struct {
	Fakultas string  `json:"fakultas"`
	Energy   float64 `json:"energy"`
	Cost     float64 `json:"cost"`
}

type Totals struct {
	Energy float64 `json:"energy"`
	Cost   float64 `json:"cost"`
}

// FacultyInfo is one row of the comparison table.
type FacultyInfo struct {
	Faculty        string  `json:"faculty"`
	Energy         float64 `json:"energy"`
	Cost           float64 `json:"cost"`
	Area           float64 `json:"area"`
	IKE            float64 `json:"ike"`
	Students       float64 `json:"students"`
	SpecificEnergy float64 `json:"specific_energy"`
}

// CompareReport is the payload of /api/compare.
type CompareReport struct {
	Value []FacultyUsage `json:"value"`
	Data  struct {
		Max     FacultyUsage `json:"max"`
		Min     FacultyUsage `json:"min"`
		Total   Totals       `json:"total"`
		Average Totals       `json:"average"`
	} `json:"data"`
	Info []FacultyInfo `json:"info"`
}

// Report pairs a payload with the AI commentary for the same period.
// Analysis is empty when the commentary could not be fetched.
type Report[T any] struct {
	Data     T
	Analysis string
}
