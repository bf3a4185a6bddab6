package analytics

import "math"

// Counts holds the number of events per type.
type Counts map[EventType]int

// Metrics is a snapshot of delivery and engagement rates. Rates are
// percentages rounded to two decimals. Sent, Delivered and Failed count
// notifications, so DeliveryRate and FailureRate are per notification.
type Metrics struct {
	Sent      int `json:"sent"`
	Delivered int `json:"delivered"`
	Failed    int `json:"failed"`
	Retried   int `json:"retried"`
	Opened    int `json:"opened"`
	Clicked   int `json:"clicked"`

	DeliveryRate float64 `json:"delivery_rate"`
	OpenRate     float64 `json:"open_rate"`
	ClickRate    float64 `json:"click_rate"`
	FailureRate  float64 `json:"failure_rate"`
}

// ComputeMetrics derives rates from counts. A zero denominator yields 0.
func ComputeMetrics(c Counts) Metrics {
	m := Metrics{
		Sent:      c[EventSent],
		Delivered: c[EventDelivered],
		Failed:    c[EventFailed],
		Retried:   c[EventRetried],
		Opened:    c[EventOpened],
		Clicked:   c[EventClicked],
	}
	m.DeliveryRate = percent(m.Delivered, m.Sent)
	m.OpenRate = percent(m.Opened, m.Delivered)
	m.ClickRate = percent(m.Clicked, m.Opened)
	m.FailureRate = percent(m.Failed, m.Sent)
	return m
}

func percent(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return math.Round(float64(num)/float64(den)*10000) / 100
}
