package domain

import "encoding/json"

// Prediction хранит ответ /predict как есть; Label и Probability вынуты для удобства.
type Prediction struct {
	Label       *string         `json:"label,omitempty"`
	Probability *float64        `json:"probability,omitempty"`
	Raw         json.RawMessage `json:"raw,omitempty"`
}

func (p *Prediction) UnmarshalJSON(data []byte) error {
	var head struct {
		Label       *string  `json:"label"`
		Probability *float64 `json:"probability"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	p.Label = head.Label
	p.Probability = head.Probability
	p.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type DatasetMode string

const (
	ModeTrain DatasetMode = "train"
	ModeTest  DatasetMode = "test"
)

func (m DatasetMode) Valid() bool {
	return m == ModeTrain || m == ModeTest
}

// DatasetInfo — ответ информационной загрузки датасета.
type DatasetInfo struct {
	Status  string      `json:"status,omitempty"`
	Mode    DatasetMode `json:"mode"`
	Rows    int         `json:"rows"`
	Cols    int         `json:"cols"`
	Message string      `json:"message,omitempty"`
}

func (d DatasetInfo) Failed() bool {
	return Ack{Status: d.Status}.Failed()
}
