package controlplane

import "time"

type messageEnvelope struct {
	Message string `json:"message"`
}

type latestResponse struct {
	Message   messageEnvelope `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

type subscribedResponse struct {
	Subscribed bool `json:"subscribed"`
}

type thresholdLevelDTO struct {
	Color      string  `json:"color"`
	Value      float64 `json:"value"`
	ResetValue float64 `json:"resetValue"`
}

type updateThresholdsRequest struct {
	Levels []thresholdLevelDTO `json:"levels"`
}
