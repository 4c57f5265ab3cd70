package models

// MonthlyRollups are retained aggregates. The model is registered so
// it shows up in listings and can be named explicitly, but it declares
// no pruning capability and is never selected by scans.
type MonthlyRollups struct{}

func MonthlyRollupsModel() Descriptor {
	return Descriptor{
		Name:  "monthly_rollups",
		Table: "monthly_rollups",
		New:   func() Model { return MonthlyRollups{} },
	}
}

func (MonthlyRollups) Desc() Descriptor { return MonthlyRollupsModel() }
